package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainExperiment = "eme/experiment/v1"
	DomainRecord     = "eme/record/v1"
)

// ExperimentIDLength is the fixed length of an experiment id in hex chars.
const ExperimentIDLength = 16

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum is the plain SHA-256 of a raw frame buffer, lower-case hex.
// No domain prefix: anyone holding the file can recompute it.
func Checksum(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// RecordDigest computes the content hash of a record's factual core.
// RecordDigest is ignored when computing, so a stored record can be
// re-digested to check it.
func RecordDigest(r *ExperimentRecord) (string, error) {
	canonical, err := MarshalCanonical(r.digestFacts())
	if err != nil {
		return "", fmt.Errorf("RecordDigest: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainRecord, canonical), nil
}

// MustRecordDigest is like RecordDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordDigest(r *ExperimentRecord) string {
	d, err := RecordDigest(r)
	if err != nil {
		panic(err)
	}
	return d
}

package ir

const (
	// Version is the eme release.
	Version = "0.1.0"

	// RecordVersion versions the ExperimentRecord layout and the digest
	// domains. Bump it together with DomainRecord.
	RecordVersion = "1"
)

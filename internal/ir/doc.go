// Package ir provides the data model shared by every stage of the
// experiment pipeline.
//
// This package contains value types and identity helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Snapshot, Delta, Verdict and ExperimentRecord are immutable once built
//   - Delta carries measurements, never interpretation
//   - Verdict is the only interpretive artifact, derived deterministically
//   - All JSON tags use snake_case
//   - Content-addressed digests use RFC 8785 canonical JSON, which forbids
//     floats; timestamps and fractions are therefore never hashed
package ir

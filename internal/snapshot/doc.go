// Package snapshot is the truth boundary of the pipeline: pixels in,
// evidence out.
//
// Hard guarantees of Store.Capture:
//   - The framebuffer bytes are persisted exactly as grabbed: no resize,
//     re-encode, color conversion or normalization
//   - Exactly 4 channels per pixel and positive dimensions
//   - SHA-256 of the raw buffer is computed before anything is written
//   - Persistence is atomic and durable: temp file in the target directory,
//     fsync, rename, fsync of the directory
//   - The persisted file is read back and re-hashed before the Snapshot is
//     returned
//   - The monotonic reading taken after the grab is not earlier than the
//     one taken before it
//
// Any violation is returned as an *IntegrityError and no Snapshot is
// produced. There are no retries and no degraded captures: a snapshot that
// cannot be trusted makes every later causal claim meaningless.
//
// File names are "<wall-ms>_<sha256[:16]>.bin", so a file's identity can be
// re-verified from its name alone (see Verify).
package snapshot

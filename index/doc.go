// Package index defines the [Backend] contract shared by index implementations.
//
// A backend owns vector storage, assigns sequential IDs starting at zero, and
// answers exact k-NN queries ranked by inner product. Locking belongs to the
// caller. The public vecflat.Index serializes access with a single
// reader-writer lock.
//
// # Subpackages
//
//   - flat: brute-force search over contiguous row-major storage
package index

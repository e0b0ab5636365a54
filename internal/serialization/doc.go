// Package serialization reads and writes parameter snapshots in the .s2s format.
//
//	Format Structure:
//	  0x00 [4 bytes: Magic "S2SM"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: Reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [Padding to a 64-byte boundary]
//	       [Tensor data: little-endian, tensors in header order]
//
// Tensors are stored as float64 (bit exact), float32 or float16. The two
// reduced precisions round on write and widen on read.
//
// Example usage:
//
//	w, err := serialization.NewWriter("model.s2s")
//	header, err := w.WriteStateDict(model.StateDict(), serialization.WriteOptions{})
//	err = w.Close()
//
//	r, err := serialization.NewReader("model.s2s")
//	defer r.Close()
//	stateDict, err := r.ReadStateDict()
package serialization

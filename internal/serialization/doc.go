// Package serialization saves and loads parameter sets as SafeTensors files.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON object name -> {dtype, shape, data_offsets}, plus "__metadata__"]
//	  [Tensor data: raw little-endian bytes]
//
// Tensors are written in alphabetical order by name. Save records a SHA-256
// checksum of the data section under the "sha256" metadata key and Load
// verifies it when present, so files written by other SafeTensors tools
// still load.
//
// Example usage:
//
//	// Save a model
//	meta := map[string]string{"model": "fc", "epoch": "3"}
//	if err := serialization.Save("model.safetensors", net.Params(), meta); err != nil {
//	    return err
//	}
//
//	// Load it back
//	params, meta, err := serialization.Load[float32]("model.safetensors")
//	if err != nil {
//	    return err
//	}
//	if err := net.Params().Load(params); err != nil {
//	    return err
//	}
package serialization

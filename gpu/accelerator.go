// Copyright 2024 The Splendor Authors
// This file defines the batch operation contract shared by every compute backend

package gpu

// GPUType represents the type of GPU acceleration
type GPUType int

const (
	GPUTypeNone GPUType = iota
	GPUTypeCUDA
	GPUTypeOpenCL
)

func (t GPUType) String() string {
	switch t {
	case GPUTypeCUDA:
		return "cuda"
	case GPUTypeOpenCL:
		return "opencl"
	default:
		return "cpu"
	}
}

// Batch status codes shared by every backend. Any other nonzero value is a
// backend-specific transaction failure code passed through verbatim.
const (
	StatusOK           int32 = 0
	StatusInvalidBatch int32 = -1
)

// Accelerator is the contract every compute backend implements. All three
// variants (CUDA, OpenCL, CPU) share one calling convention: hash and
// transaction batches always carry a declared-lengths array. Earlier native
// builds had a second, length-agnostic shape for the CUDA entry points;
// mixing the two corrupted slot arithmetic, so that variant is gone.
//
// Buffers are caller-owned flat slot arrays laid out per slots.go. The
// backend neither retains nor frees them.
type Accelerator interface {
	// Kind identifies the physical backend for selection and logging.
	Kind() GPUType

	// Init acquires backend resources and returns the usable device count.
	// A result <= 0 means the backend is unavailable. Init is idempotent;
	// calling it twice without a Cleanup leaves the backend in the same
	// state as calling it once.
	Init() int

	// ProcessHashes computes a 32-byte digest for each of count items and
	// writes it to the matching output slot. Hashing has no per-item
	// failure mode; the return value only reflects structural validity.
	ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32

	// VerifySignatures checks each signature over its fixed-size message
	// and public key, writing a one-byte flag (1 valid, 0 invalid) per
	// item. Per-item outcomes live in out, never in the return status.
	VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32

	// ProcessTransactions validates each transaction and writes a 64-byte
	// result record. A nonzero per-item status aborts the batch at that
	// item and is returned verbatim; later result slots are not written.
	ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32

	// Cleanup releases backend resources. Safe to call without a prior
	// Init, and after a failed one.
	Cleanup()
}

//go:build !cgo || !gpu
// +build !cgo !gpu

// Copyright 2024 The Splendor Authors
// CUDA stub for builds without the 'gpu' tag. Init reports no device so the
// Selector falls through to the next backend; the batch entry points only
// exist to satisfy the Accelerator contract and always fail.

package gpu

type CUDAAccelerator struct{}

func NewCUDAAccelerator() *CUDAAccelerator {
	return &CUDAAccelerator{}
}

func (a *CUDAAccelerator) Kind() GPUType {
	return GPUTypeCUDA
}

func (a *CUDAAccelerator) Init() int {
	return 0
}

func (a *CUDAAccelerator) ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32 {
	return StatusInvalidBatch
}

func (a *CUDAAccelerator) VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32 {
	return StatusInvalidBatch
}

func (a *CUDAAccelerator) ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32 {
	return StatusInvalidBatch
}

func (a *CUDAAccelerator) Cleanup() {}

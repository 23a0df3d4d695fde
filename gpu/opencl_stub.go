//go:build !cgo || !gpu
// +build !cgo !gpu

// Copyright 2024 The Splendor Authors
// OpenCL stub for builds without the 'gpu' tag.

package gpu

type OpenCLAccelerator struct{}

func NewOpenCLAccelerator() *OpenCLAccelerator {
	return &OpenCLAccelerator{}
}

func (a *OpenCLAccelerator) Kind() GPUType {
	return GPUTypeOpenCL
}

func (a *OpenCLAccelerator) Init() int {
	return 0
}

func (a *OpenCLAccelerator) ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32 {
	return StatusInvalidBatch
}

func (a *OpenCLAccelerator) VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32 {
	return StatusInvalidBatch
}

func (a *OpenCLAccelerator) ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32 {
	return StatusInvalidBatch
}

func (a *OpenCLAccelerator) Cleanup() {}

//go:build cgo && gpu
// +build cgo,gpu

// Copyright 2024 The Splendor Authors
// This file binds the CUDA backend from libsplendor_cuda

package gpu

/*
#cgo CFLAGS: -I${SRCDIR}/native
#cgo LDFLAGS: -L${SRCDIR}/native -lsplendor_cuda

#include <stdlib.h>

// CUDA helper entry points implemented in native/cuda_kernels.cu
int cuda_init_device();
int cuda_process_hashes(void* hashes, void* lengths, int count, void* results);
int cuda_verify_signatures(void* sigs, void* msgs, void* keys, int count, void* results);
int cuda_process_transactions(void* txs, void* lengths, int count, void* results);
void cuda_cleanup();
*/
import "C"

import "unsafe"

// CUDAAccelerator drives the CUDA kernels. The kernels share the slot
// widths in slots.go; the lengths array rides along on hash and transaction
// batches so the device clamps with the same rule as the host.
type CUDAAccelerator struct {
	devices int
}

func NewCUDAAccelerator() *CUDAAccelerator {
	return &CUDAAccelerator{}
}

func (a *CUDAAccelerator) Kind() GPUType {
	return GPUTypeCUDA
}

func (a *CUDAAccelerator) Init() int {
	if a.devices > 0 {
		return a.devices
	}
	a.devices = int(C.cuda_init_device())
	return a.devices
}

func (a *CUDAAccelerator) ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32 {
	if !hashBatchValid(inputs, lengths, count, out) {
		return StatusInvalidBatch
	}
	return int32(C.cuda_process_hashes(
		unsafe.Pointer(&inputs[0]),
		unsafe.Pointer(&lengths[0]),
		C.int(count),
		unsafe.Pointer(&out[0]),
	))
}

func (a *CUDAAccelerator) VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32 {
	if !signatureBatchValid(sigs, msgs, keys, count, out) {
		return StatusInvalidBatch
	}
	return int32(C.cuda_verify_signatures(
		unsafe.Pointer(&sigs[0]),
		unsafe.Pointer(&msgs[0]),
		unsafe.Pointer(&keys[0]),
		C.int(count),
		unsafe.Pointer(&out[0]),
	))
}

func (a *CUDAAccelerator) ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32 {
	if !txBatchValid(txs, lengths, count, results) {
		return StatusInvalidBatch
	}
	return int32(C.cuda_process_transactions(
		unsafe.Pointer(&txs[0]),
		unsafe.Pointer(&lengths[0]),
		C.int(count),
		unsafe.Pointer(&results[0]),
	))
}

func (a *CUDAAccelerator) Cleanup() {
	if a.devices > 0 {
		C.cuda_cleanup()
		a.devices = 0
	}
}

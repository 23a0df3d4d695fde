//go:build cgo && gpu
// +build cgo,gpu

// Copyright 2024 The Splendor Authors
// This file binds the OpenCL backend

package gpu

/*
#cgo CFLAGS: -I${SRCDIR}/native

#include <stdlib.h>

// OpenCL helper entry points implemented in native/opencl_kernels.c
int initOpenCL();
int processHashesOpenCL(void* hashes, void* lengths, int count, void* results);
int verifySignaturesOpenCL(void* sigs, void* msgs, void* keys, int count, void* results);
int processTxBatchOpenCL(void* txs, void* lengths, int count, void* results);
void cleanupOpenCL();
*/
import "C"

import "unsafe"

// OpenCLAccelerator drives the OpenCL kernels through the same calling
// convention as CUDA.
type OpenCLAccelerator struct {
	devices int
}

func NewOpenCLAccelerator() *OpenCLAccelerator {
	return &OpenCLAccelerator{}
}

func (a *OpenCLAccelerator) Kind() GPUType {
	return GPUTypeOpenCL
}

func (a *OpenCLAccelerator) Init() int {
	if a.devices > 0 {
		return a.devices
	}
	a.devices = int(C.initOpenCL())
	return a.devices
}

func (a *OpenCLAccelerator) ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32 {
	if !hashBatchValid(inputs, lengths, count, out) {
		return StatusInvalidBatch
	}
	return int32(C.processHashesOpenCL(
		unsafe.Pointer(&inputs[0]),
		unsafe.Pointer(&lengths[0]),
		C.int(count),
		unsafe.Pointer(&out[0]),
	))
}

func (a *OpenCLAccelerator) VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32 {
	if !signatureBatchValid(sigs, msgs, keys, count, out) {
		return StatusInvalidBatch
	}
	return int32(C.verifySignaturesOpenCL(
		unsafe.Pointer(&sigs[0]),
		unsafe.Pointer(&msgs[0]),
		unsafe.Pointer(&keys[0]),
		C.int(count),
		unsafe.Pointer(&out[0]),
	))
}

func (a *OpenCLAccelerator) ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32 {
	if !txBatchValid(txs, lengths, count, results) {
		return StatusInvalidBatch
	}
	return int32(C.processTxBatchOpenCL(
		unsafe.Pointer(&txs[0]),
		unsafe.Pointer(&lengths[0]),
		C.int(count),
		unsafe.Pointer(&results[0]),
	))
}

func (a *OpenCLAccelerator) Cleanup() {
	if a.devices > 0 {
		C.cleanupOpenCL()
		a.devices = 0
	}
}

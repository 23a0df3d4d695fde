//go:build cgo && gpu
// +build cgo,gpu

// Copyright 2024 The Splendor Authors
// Cross-backend parity checks. These only run on hosts with the native
// kernels linked in; the clamp and status laws they assert must hold on
// every backend identically.

package gpu

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func gpuBackends(t *testing.T) []Accelerator {
	t.Helper()

	var available []Accelerator
	for _, a := range []Accelerator{NewCUDAAccelerator(), NewOpenCLAccelerator()} {
		if a.Init() > 0 {
			available = append(available, a)
			t.Cleanup(a.Cleanup)
		}
	}
	if len(available) == 0 {
		t.Skip("no GPU backend available on this host")
	}
	return available
}

func TestGPUHashParityWithCPU(t *testing.T) {
	cpu := NewCPUAccelerator(nil)

	inputs := [][]byte{
		[]byte(""),
		[]byte("ethereum"),
		bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 40),
	}
	in := make([]byte, len(inputs)*HashSlotBytes)
	lengths := packSlots(in, inputs, HashSlotBytes)

	for _, backend := range gpuBackends(t) {
		out := make([]byte, len(inputs)*HashOutputBytes)
		if status := backend.ProcessHashes(in, lengths, len(inputs), out); status != StatusOK {
			t.Fatalf("%s: hash batch status %d", backend.Kind(), status)
		}

		ref := make([]byte, len(inputs)*HashOutputBytes)
		if status := cpu.ProcessHashes(in, lengths, len(inputs), ref); status != StatusOK {
			t.Fatalf("cpu reference status %d", status)
		}
		if !bytes.Equal(out, ref) {
			t.Fatalf("%s: digests diverge from CPU reference", backend.Kind())
		}
	}
}

func TestGPUClampParityWithCPU(t *testing.T) {
	cpu := NewCPUAccelerator(nil)

	const count = 3
	in := make([]byte, count*HashSlotBytes)
	for i := range in {
		in[i] = byte(i)
	}
	lengths := []uint32{10, 300, 0}

	for _, backend := range gpuBackends(t) {
		out := make([]byte, count*HashOutputBytes)
		ref := make([]byte, count*HashOutputBytes)
		if status := backend.ProcessHashes(in, lengths, count, out); status != StatusOK {
			t.Fatalf("%s: status %d", backend.Kind(), status)
		}
		if status := cpu.ProcessHashes(in, lengths, count, ref); status != StatusOK {
			t.Fatalf("cpu reference status %d", status)
		}
		if !bytes.Equal(out, ref) {
			t.Fatalf("%s: clamped lengths handled differently than CPU", backend.Kind())
		}
	}
}

func TestGPUSignatureParityWithCPU(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := crypto.Keccak256([]byte("gpu-parity-signature"))
	sig, err := crypto.Sign(msg, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub := crypto.FromECDSAPub(&key.PublicKey)
	invalidSig := append([]byte{}, sig...)
	invalidSig[10] ^= 0xFF

	sigs := make([]byte, 2*SignatureBytes)
	msgs := make([]byte, 2*MessageBytes)
	keys := make([]byte, 2*PublicKeyBytes)
	copy(slotAt(sigs, 0, SignatureBytes), sig)
	copy(slotAt(sigs, 1, SignatureBytes), invalidSig)
	for i := 0; i < 2; i++ {
		copy(slotAt(msgs, i, MessageBytes), msg)
		copy(slotAt(keys, i, PublicKeyBytes), pub)
	}

	for _, backend := range gpuBackends(t) {
		out := make([]byte, 2)
		if status := backend.VerifySignatures(sigs, msgs, keys, 2, out); status != StatusOK {
			t.Fatalf("%s: status %d", backend.Kind(), status)
		}
		if out[0] != 1 || out[1] != 0 {
			t.Fatalf("%s: flags %v, want [1 0]", backend.Kind(), out)
		}
	}
}

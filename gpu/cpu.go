// Copyright 2024 The Splendor Authors
// This file implements the CPU reference backend

package gpu

// CPUAccelerator executes batches on the calling goroutine by delegating
// each item to the injected Engine. It has no external resource to acquire,
// so Init always succeeds; the Selector relies on that as its terminal
// fallback.
type CPUAccelerator struct {
	engine Engine
}

// NewCPUAccelerator returns a CPU backend bound to engine. A nil engine
// selects DefaultEngine.
func NewCPUAccelerator(engine Engine) *CPUAccelerator {
	if engine == nil {
		engine = DefaultEngine()
	}
	return &CPUAccelerator{engine: engine}
}

func (c *CPUAccelerator) Kind() GPUType {
	return GPUTypeNone
}

// Init reports one logical device. There is nothing to acquire, which makes
// it trivially idempotent.
func (c *CPUAccelerator) Init() int {
	return 1
}

func (c *CPUAccelerator) ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32 {
	if !hashBatchValid(inputs, lengths, count, out) {
		return StatusInvalidBatch
	}
	for i := 0; i < count; i++ {
		n := clampLength(lengths[i], HashSlotBytes)
		in := slotAt(inputs, i, HashSlotBytes)[:n]
		digest := c.engine.ComputeDigest(in)
		copy(slotAt(out, i, HashOutputBytes), digest)
	}
	return StatusOK
}

func (c *CPUAccelerator) VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32 {
	if !signatureBatchValid(sigs, msgs, keys, count, out) {
		return StatusInvalidBatch
	}
	for i := 0; i < count; i++ {
		sig := slotAt(sigs, i, SignatureBytes)
		msg := slotAt(msgs, i, MessageBytes)
		key := slotAt(keys, i, PublicKeyBytes)
		if c.engine.Verify(sig, msg, key) {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return StatusOK
}

func (c *CPUAccelerator) ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32 {
	if !txBatchValid(txs, lengths, count, results) {
		return StatusInvalidBatch
	}
	for i := 0; i < count; i++ {
		n := clampLength(lengths[i], TxSlotBytes)
		tx := slotAt(txs, i, TxSlotBytes)[:n]
		res := slotAt(results, i, TxResultBytes)
		// A nonzero engine status is fatal to the whole batch; remaining
		// result slots stay untouched.
		if status := c.engine.ProcessTransaction(tx, res); status != 0 {
			return status
		}
	}
	return StatusOK
}

func (c *CPUAccelerator) Cleanup() {
	// Nothing to release.
}

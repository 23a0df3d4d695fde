// Copyright 2024 The Splendor Authors
// This file defines the fixed-slot buffer layout shared by all backends

package gpu

// Slot widths in bytes. These are part of the wire contract between the Go
// dispatch layer and the native kernels: every backend compiles against the
// same values, and changing one side without the other breaks interop.
const (
	HashSlotBytes   = 256
	TxSlotBytes     = 1024
	SignatureBytes  = 65
	MessageBytes    = 32
	PublicKeyBytes  = 65
	HashOutputBytes = 32
	TxResultBytes   = 64
)

// Transaction result record layout. All integer fields are little-endian.
const (
	txResultHashOffset    = 0  // [0:32]  transaction hash
	txResultValidOffset   = 32 // [32]    1 when the transaction decoded cleanly
	txResultErrOffset     = 33 // [33]    nonzero error class, 1 = malformed input
	txResultTypeOffset    = 34 // [34]    transaction envelope type
	txResultGasOffset     = 40 // [40:48] gas limit
	txResultChainIDOffset = 48 // [48:56] chain id (when it fits in 64 bits)
	txResultNonceOffset   = 56 // [56:64] nonce
)

// clampLength bounds a declared item length to its slot width. A declared
// length may exceed the slot when the caller packed a truncated item; the
// clamp guarantees no backend reads past the slot boundary. Zero is a valid
// empty payload, not an error.
func clampLength(length, max uint32) uint32 {
	if length > max {
		return max
	}
	return length
}

// slotAt returns the bounded view of item index in a flat slot buffer.
func slotAt(buf []byte, index, width int) []byte {
	off := index * width
	return buf[off : off+width : off+width]
}

// hashBatchValid reports whether a hash batch satisfies the structural
// preconditions: non-nil buffers, positive count, and buffers wide enough
// for count slots. Backends return StatusInvalidBatch without touching the
// output when this fails.
func hashBatchValid(inputs []byte, lengths []uint32, count int, out []byte) bool {
	if inputs == nil || lengths == nil || out == nil || count <= 0 {
		return false
	}
	return len(inputs) >= count*HashSlotBytes &&
		len(lengths) >= count &&
		len(out) >= count*HashOutputBytes
}

func signatureBatchValid(sigs, msgs, keys []byte, count int, out []byte) bool {
	if sigs == nil || msgs == nil || keys == nil || out == nil || count <= 0 {
		return false
	}
	return len(sigs) >= count*SignatureBytes &&
		len(msgs) >= count*MessageBytes &&
		len(keys) >= count*PublicKeyBytes &&
		len(out) >= count
}

func txBatchValid(txs []byte, lengths []uint32, count int, results []byte) bool {
	if txs == nil || lengths == nil || results == nil || count <= 0 {
		return false
	}
	return len(txs) >= count*TxSlotBytes &&
		len(lengths) >= count &&
		len(results) >= count*TxResultBytes
}

// packSlots copies items into fixed-width slots of data and returns every
// item's declared length, clamped to the slot width. data must hold
// len(items)*width bytes; it is zeroed first so short items are padded.
func packSlots(data []byte, items [][]byte, width int) []uint32 {
	total := len(items) * width
	data = data[:total]
	for i := range data {
		data[i] = 0
	}

	lengths := make([]uint32, len(items))
	for i, item := range items {
		n := len(item)
		if n > width {
			n = width
		}
		copy(data[i*width:i*width+n], item[:n])
		lengths[i] = uint32(n)
	}
	return lengths
}

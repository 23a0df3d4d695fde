// Copyright 2024 The Splendor Authors
// This file bridges the CPU backend to the node's crypto and transaction logic

package gpu

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Engine supplies the host capabilities the CPU backend delegates to. The
// backend owns slot marshaling only; the digest, verification and
// transaction logic belong to the surrounding node runtime.
type Engine interface {
	// ComputeDigest returns the 32-byte digest of data.
	ComputeDigest(data []byte) []byte

	// Verify reports whether sig is a valid signature over msg by key.
	// sig, msg and key are exactly SignatureBytes, MessageBytes and
	// PublicKeyBytes long.
	Verify(sig, msg, key []byte) bool

	// ProcessTransaction validates one encoded transaction and fills the
	// TxResultBytes-wide result record. A nonzero return is fatal to the
	// whole batch; recoverable per-item problems are encoded in the
	// record's error byte with a zero return.
	ProcessTransaction(tx []byte, result []byte) int32
}

// nodeEngine is the production Engine: Keccak-256 digests, secp256k1
// signature checks, and transaction decoding via the canonical binary
// encoding.
type nodeEngine struct{}

// DefaultEngine returns the Engine used when the caller does not inject one.
func DefaultEngine() Engine {
	return nodeEngine{}
}

func (nodeEngine) ComputeDigest(data []byte) []byte {
	return crypto.Keccak256(data)
}

func (nodeEngine) Verify(sig, msg, key []byte) bool {
	if len(sig) != SignatureBytes || len(msg) != MessageBytes || len(key) != PublicKeyBytes {
		return false
	}
	// R||S only; the recovery byte is not part of the verification input.
	return crypto.VerifySignature(key, msg, sig[:64])
}

func (nodeEngine) ProcessTransaction(raw []byte, out []byte) int32 {
	if len(out) != TxResultBytes {
		return StatusInvalidBatch
	}
	for i := range out {
		out[i] = 0
	}
	if len(raw) == 0 {
		out[txResultErrOffset] = 1 // malformed input
		return 0
	}

	// Defensive copy: types.Transaction expects the slice to remain valid,
	// and raw aliases the caller's slot buffer.
	encoded := make([]byte, len(raw))
	copy(encoded, raw)

	var tx types.Transaction
	if err := tx.UnmarshalBinary(encoded); err != nil {
		out[txResultErrOffset] = 1
		return 0
	}

	hash := tx.Hash()
	copy(out[txResultHashOffset:txResultHashOffset+HashOutputBytes], hash[:])
	out[txResultValidOffset] = 1
	out[txResultTypeOffset] = byte(tx.Type())

	binary.LittleEndian.PutUint64(out[txResultGasOffset:txResultGasOffset+8], tx.Gas())
	if chainID := tx.ChainId(); chainID != nil && chainID.BitLen() <= 64 {
		binary.LittleEndian.PutUint64(out[txResultChainIDOffset:txResultChainIDOffset+8], chainID.Uint64())
	}
	binary.LittleEndian.PutUint64(out[txResultNonceOffset:txResultNonceOffset+8], tx.Nonce())

	return 0
}

// Copyright 2024 The Splendor Authors

package gpu

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func signedTestTx(t *testing.T, nonce uint64, gas uint64) *types.Transaction {
	t.Helper()

	chainID := big.NewInt(1337)
	signer := types.LatestSignerForChainID(chainID)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	to := crypto.PubkeyToAddress(key.PublicKey)

	tx := types.NewTransaction(nonce, to, big.NewInt(12345), gas, big.NewInt(42_000_000_000), nil)
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return signed
}

func TestEngineTransactionRecordLayout(t *testing.T) {
	e := DefaultEngine()

	tx := signedTestTx(t, 7, 21000)
	encoded, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}

	out := make([]byte, TxResultBytes)
	if status := e.ProcessTransaction(encoded, out); status != 0 {
		t.Fatalf("process status %d", status)
	}

	hash := tx.Hash()
	if !bytes.Equal(out[txResultHashOffset:txResultHashOffset+HashOutputBytes], hash[:]) {
		t.Fatal("hash field mismatch")
	}
	if out[txResultValidOffset] != 1 {
		t.Fatal("valid flag not set")
	}
	if out[txResultErrOffset] != 0 {
		t.Fatalf("error code %d for valid transaction", out[txResultErrOffset])
	}
	if out[txResultTypeOffset] != byte(tx.Type()) {
		t.Fatal("type field mismatch")
	}
	if gas := binary.LittleEndian.Uint64(out[txResultGasOffset : txResultGasOffset+8]); gas != 21000 {
		t.Fatalf("gas field %d, want 21000", gas)
	}
	if id := binary.LittleEndian.Uint64(out[txResultChainIDOffset : txResultChainIDOffset+8]); id != 1337 {
		t.Fatalf("chain id field %d, want 1337", id)
	}
	if nonce := binary.LittleEndian.Uint64(out[txResultNonceOffset : txResultNonceOffset+8]); nonce != 7 {
		t.Fatalf("nonce field %d, want 7", nonce)
	}
}

func TestEngineMalformedTransaction(t *testing.T) {
	e := DefaultEngine()

	out := bytes.Repeat([]byte{0x55}, TxResultBytes)
	if status := e.ProcessTransaction([]byte{0xde, 0xad, 0xbe, 0xef}, out); status != 0 {
		t.Fatalf("decode failure must stay per-item, got batch status %d", status)
	}
	if out[txResultValidOffset] != 0 || out[txResultErrOffset] != 1 {
		t.Fatalf("malformed tx record: valid=%d err=%d", out[txResultValidOffset], out[txResultErrOffset])
	}

	out = bytes.Repeat([]byte{0x55}, TxResultBytes)
	if status := e.ProcessTransaction(nil, out); status != 0 {
		t.Fatalf("empty payload status %d", status)
	}
	if out[txResultErrOffset] != 1 {
		t.Fatal("empty payload not flagged as malformed")
	}
}

func TestEngineVerifyRejectsBadWidths(t *testing.T) {
	e := DefaultEngine()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := crypto.Keccak256([]byte("width-check"))
	sig, err := crypto.Sign(msg, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub := crypto.FromECDSAPub(&key.PublicKey)

	if !e.Verify(sig, msg, pub) {
		t.Fatal("valid signature rejected")
	}
	if e.Verify(sig[:64], msg, pub) {
		t.Fatal("short signature accepted")
	}
	if e.Verify(sig, msg[:16], pub) {
		t.Fatal("short message accepted")
	}
	if e.Verify(sig, msg, pub[:64]) {
		t.Fatal("unprefixed key accepted")
	}
}

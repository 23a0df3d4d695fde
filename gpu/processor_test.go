// Copyright 2024 The Splendor Authors

package gpu

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func newTestProcessor(t *testing.T) *GPUProcessor {
	t.Helper()

	config := &Config{
		MaxBatchSize:       1024,
		HashWorkers:        2,
		SignatureWorkers:   2,
		TxWorkers:          2,
		SignatureCacheSize: 64,
	}
	p, err := NewGPUProcessor(config)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch callback not delivered")
	}
}

func TestProcessorHashParity(t *testing.T) {
	p := newTestProcessor(t)

	inputs := [][]byte{
		[]byte(""),
		[]byte("ethereum"),
		bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 40),
	}

	done := make(chan struct{})
	var results [][]byte
	var cbErr error
	err := p.ProcessHashesBatch(inputs, func(r [][]byte, e error) {
		results, cbErr = r, e
		close(done)
	})
	if err != nil {
		t.Fatalf("submit hash batch: %v", err)
	}
	waitDone(t, done)

	if cbErr != nil {
		t.Fatalf("hash batch error: %v", cbErr)
	}
	for i, input := range inputs {
		expected := crypto.Keccak256(input)
		if !bytes.Equal(results[i], expected) {
			t.Fatalf("hash %d mismatch: have %x want %x", i, results[i], expected)
		}
	}
}

func TestProcessorSignatureParity(t *testing.T) {
	p := newTestProcessor(t)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	msg := crypto.Keccak256([]byte("processor-signature-test"))
	sig, err := crypto.Sign(msg, key)
	if err != nil {
		t.Fatalf("failed to sign message: %v", err)
	}
	pub := crypto.FromECDSAPub(&key.PublicKey)

	invalidSig := append([]byte{}, sig...)
	invalidSig[10] ^= 0xFF

	verify := func() []bool {
		done := make(chan struct{})
		var results []bool
		err := p.ProcessSignaturesBatch(
			[][]byte{sig, invalidSig},
			[][]byte{msg, msg},
			[][]byte{pub, pub},
			func(r []bool, e error) {
				if e != nil {
					t.Errorf("signature batch error: %v", e)
				}
				results = r
				close(done)
			},
		)
		if err != nil {
			t.Fatalf("submit signature batch: %v", err)
		}
		waitDone(t, done)
		return results
	}

	// Second round is served from the verification cache; outcomes must not
	// change.
	for round := 0; round < 2; round++ {
		results := verify()
		if !results[0] {
			t.Fatalf("round %d: valid signature reported invalid", round)
		}
		if results[1] {
			t.Fatalf("round %d: invalid signature reported valid", round)
		}
	}
}

func TestProcessorTransactionParity(t *testing.T) {
	p := newTestProcessor(t)

	txs := []*types.Transaction{
		signedTestTx(t, 1, 21000),
		signedTestTx(t, 2, 90000),
	}

	done := make(chan struct{})
	var results []*TxResult
	err := p.ProcessTransactionsBatch(txs, func(r []*TxResult, e error) {
		if e != nil {
			t.Errorf("transaction batch error: %v", e)
		}
		results = r
		close(done)
	})
	if err != nil {
		t.Fatalf("submit transaction batch: %v", err)
	}
	waitDone(t, done)

	for i, tx := range txs {
		res := results[i]
		if res == nil {
			t.Fatalf("tx %d result missing", i)
		}
		if !res.Valid {
			t.Fatalf("tx %d reported invalid: %v", i, res.Error)
		}
		if res.GasUsed != tx.Gas() {
			t.Fatalf("tx %d gas mismatch: have %d want %d", i, res.GasUsed, tx.Gas())
		}
		if res.Hash != tx.Hash() {
			t.Fatalf("tx %d hash mismatch", i)
		}
	}
}

func TestProcessorEmptyBatches(t *testing.T) {
	p := newTestProcessor(t)

	called := false
	if err := p.ProcessHashesBatch(nil, func(r [][]byte, e error) {
		called = true
		if r != nil || e != nil {
			t.Errorf("empty batch callback got %v, %v", r, e)
		}
	}); err != nil {
		t.Fatalf("empty hash batch: %v", err)
	}
	if !called {
		t.Fatal("empty batch callback not invoked synchronously")
	}
}

func TestProcessorRejectsOversizedBatch(t *testing.T) {
	p := newTestProcessor(t)

	inputs := make([][]byte, p.maxBatchSize+1)
	if err := p.ProcessHashesBatch(inputs, func([][]byte, error) {}); err == nil {
		t.Fatal("oversized batch accepted")
	}
}

func TestProcessorStats(t *testing.T) {
	p := newTestProcessor(t)

	done := make(chan struct{})
	if err := p.ProcessHashesBatch([][]byte{[]byte("stats")}, func([][]byte, error) {
		close(done)
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitDone(t, done)

	// The stats update happens after the callback; give the worker a moment.
	deadline := time.After(2 * time.Second)
	for {
		if stats := p.GetStats(); stats.ProcessedHashes > 0 {
			if stats.GPUType != p.GetGPUType() {
				t.Fatalf("stats backend %v, processor reports %v", stats.GPUType, p.GetGPUType())
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("hash stats never updated")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Copyright 2024 The Splendor Authors
// This file implements the asynchronous batch front-end over the backend selector

package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/panjf2000/ants/v2"
)

// GPUProcessor provides accelerated batch operations for blockchain
// workloads. Batches are queued per kind and drained by worker goroutines
// that pack items into fixed slots, dispatch through the Selector and fan
// results back through the batch callback.
type GPUProcessor struct {
	selector     *Selector
	engine       Engine
	maxBatchSize int

	// Processing pools
	hashPool      chan *HashBatch
	signaturePool chan *SignatureBatch
	txPool        chan *TransactionBatch

	workers  *ants.Pool
	sigCache *lru.ARCCache

	// Statistics
	mu              sync.RWMutex
	processedHashes uint64
	processedSigs   uint64
	processedTxs    uint64
	avgHashTime     time.Duration
	avgSigTime      time.Duration
	avgTxTime       time.Duration

	// Shutdown coordination
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Slab reuse for slot buffers
	memoryPool sync.Pool
}

// HashBatch represents a batch of hash inputs to process
type HashBatch struct {
	Hashes   [][]byte
	Results  [][]byte
	Callback func([][]byte, error)
}

// SignatureBatch represents a batch of signatures to verify
type SignatureBatch struct {
	Signatures [][]byte
	Messages   [][]byte
	PublicKeys [][]byte
	Results    []bool
	Callback   func([]bool, error)
}

// TransactionBatch represents a batch of transactions to process
type TransactionBatch struct {
	Transactions []*types.Transaction
	Results      []*TxResult
	Callback     func([]*TxResult, error)
}

// TxResult holds the result of batch transaction processing
type TxResult struct {
	Hash    common.Hash
	Valid   bool
	GasUsed uint64
	Error   error
}

// NewGPUProcessor creates a processor over the standard backend ladder.
func NewGPUProcessor(config *Config) (*GPUProcessor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.sanitize()

	ctx, cancel := context.WithCancel(context.Background())

	engine := DefaultEngine()
	selector := NewSelector(DefaultBackends(config.PreferredGPUType, engine)...)

	p := &GPUProcessor{
		selector:      selector,
		engine:        engine,
		maxBatchSize:  config.MaxBatchSize,
		hashPool:      make(chan *HashBatch, 100),
		signaturePool: make(chan *SignatureBatch, 100),
		txPool:        make(chan *TransactionBatch, 100),
		ctx:           ctx,
		cancel:        cancel,
	}

	p.memoryPool = sync.Pool{
		New: func() interface{} {
			return make([]byte, 64*1024)
		},
	}

	p.sigCache, _ = lru.NewARC(config.SignatureCacheSize)

	if selector.Init() == 0 {
		cancel()
		return nil, errors.New("no acceleration backend available")
	}

	total := config.HashWorkers + config.SignatureWorkers + config.TxWorkers
	workers, err := ants.NewPool(total)
	if err != nil {
		cancel()
		selector.Cleanup()
		return nil, err
	}
	p.workers = workers

	p.startWorkers(config)

	log.Info("GPU processor initialized",
		"backend", selector.ActiveType(),
		"state", selector.State(),
		"maxBatchSize", p.maxBatchSize,
	)
	return p, nil
}

func (p *GPUProcessor) startWorkers(config *Config) {
	for i := 0; i < config.HashWorkers; i++ {
		p.spawn(p.hashWorker)
	}
	for i := 0; i < config.SignatureWorkers; i++ {
		p.spawn(p.signatureWorker)
	}
	for i := 0; i < config.TxWorkers; i++ {
		p.spawn(p.transactionWorker)
	}
}

func (p *GPUProcessor) spawn(worker func()) {
	p.wg.Add(1)
	if err := p.workers.Submit(worker); err != nil {
		p.wg.Done()
		log.Error("Failed to start batch worker", "error", err)
	}
}

// ProcessHashesBatch queues a batch of hash inputs. The callback receives
// one 32-byte digest per input in order.
func (p *GPUProcessor) ProcessHashesBatch(hashes [][]byte, callback func([][]byte, error)) error {
	if len(hashes) == 0 {
		callback(nil, nil)
		return nil
	}
	if len(hashes) > p.maxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(hashes), p.maxBatchSize)
	}

	batch := &HashBatch{
		Hashes:   hashes,
		Results:  make([][]byte, len(hashes)),
		Callback: callback,
	}

	select {
	case p.hashPool <- batch:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		return errors.New("hash processing queue full")
	}
}

// ProcessSignaturesBatch queues a batch of signature verifications. The
// callback receives one validity flag per item in order.
func (p *GPUProcessor) ProcessSignaturesBatch(signatures, messages, publicKeys [][]byte, callback func([]bool, error)) error {
	if len(signatures) == 0 {
		callback(nil, nil)
		return nil
	}
	if len(messages) != len(signatures) || len(publicKeys) != len(signatures) {
		return errors.New("signature batch slices differ in length")
	}
	if len(signatures) > p.maxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(signatures), p.maxBatchSize)
	}

	batch := &SignatureBatch{
		Signatures: signatures,
		Messages:   messages,
		PublicKeys: publicKeys,
		Results:    make([]bool, len(signatures)),
		Callback:   callback,
	}

	select {
	case p.signaturePool <- batch:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		return errors.New("signature processing queue full")
	}
}

// ProcessTransactionsBatch queues a batch of transactions for validation.
// On a per-item fatal failure the callback receives a nil result slice and
// an error carrying the backend status; the caller decides whether to
// resubmit a trimmed batch.
func (p *GPUProcessor) ProcessTransactionsBatch(txs []*types.Transaction, callback func([]*TxResult, error)) error {
	if len(txs) == 0 {
		callback(nil, nil)
		return nil
	}
	if len(txs) > p.maxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(txs), p.maxBatchSize)
	}

	batch := &TransactionBatch{
		Transactions: txs,
		Results:      make([]*TxResult, len(txs)),
		Callback:     callback,
	}

	select {
	case p.txPool <- batch:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		return errors.New("transaction processing queue full")
	}
}

func (p *GPUProcessor) hashWorker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case batch := <-p.hashPool:
			start := time.Now()
			p.processHashes(batch)
			p.updateHashStats(time.Since(start))
		}
	}
}

func (p *GPUProcessor) signatureWorker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case batch := <-p.signaturePool:
			start := time.Now()
			p.processSignatures(batch)
			p.updateSigStats(time.Since(start))
		}
	}
}

func (p *GPUProcessor) transactionWorker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case batch := <-p.txPool:
			start := time.Now()
			p.processTransactions(batch)
			p.updateTxStats(time.Since(start))
		}
	}
}

// slotBuffer returns a pooled slab of at least total bytes.
func (p *GPUProcessor) slotBuffer(total int) []byte {
	buf := p.memoryPool.Get().([]byte)
	if cap(buf) < total {
		buf = make([]byte, total)
	}
	return buf[:total]
}

func (p *GPUProcessor) processHashes(batch *HashBatch) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Hash batch processing panicked", "panic", r)
			p.fallbackHashes(batch)
		}
	}()

	count := len(batch.Hashes)
	in := p.slotBuffer(count * HashSlotBytes)
	defer p.memoryPool.Put(in)

	lengths := packSlots(in, batch.Hashes, HashSlotBytes)
	out := make([]byte, count*HashOutputBytes)

	if status := p.selector.ProcessHashes(in, lengths, count, out); status != StatusOK {
		log.Warn("Hash batch failed on every backend", "status", status)
		p.fallbackHashes(batch)
		return
	}

	for i := 0; i < count; i++ {
		dst := make([]byte, HashOutputBytes)
		copy(dst, slotAt(out, i, HashOutputBytes))
		batch.Results[i] = dst
	}

	if batch.Callback != nil {
		batch.Callback(batch.Results, nil)
	}
}

// fallbackHashes computes digests directly through the engine. Inputs are
// hashed whole here; the slot layout only exists at the dispatch boundary.
func (p *GPUProcessor) fallbackHashes(batch *HashBatch) {
	for i, input := range batch.Hashes {
		item := input
		if len(item) > HashSlotBytes {
			item = item[:HashSlotBytes]
		}
		batch.Results[i] = p.engine.ComputeDigest(item)
	}
	if batch.Callback != nil {
		batch.Callback(batch.Results, nil)
	}
}

func sigCacheKey(sig, msg, key []byte) string {
	return string(crypto.Keccak256(sig, msg, key))
}

func (p *GPUProcessor) processSignatures(batch *SignatureBatch) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Signature batch processing panicked", "panic", r)
			p.fallbackSignatures(batch, nil)
		}
	}()

	count := len(batch.Signatures)
	keys := make([]string, count)
	misses := make([]int, 0, count)

	for i := 0; i < count; i++ {
		keys[i] = sigCacheKey(batch.Signatures[i], batch.Messages[i], batch.PublicKeys[i])
		if v, ok := p.sigCache.Get(keys[i]); ok {
			batch.Results[i] = v.(bool)
		} else {
			misses = append(misses, i)
		}
	}

	if len(misses) > 0 {
		m := len(misses)
		sigs := make([]byte, m*SignatureBytes)
		msgs := make([]byte, m*MessageBytes)
		pubs := make([]byte, m*PublicKeyBytes)
		for j, i := range misses {
			copy(slotAt(sigs, j, SignatureBytes), batch.Signatures[i])
			copy(slotAt(msgs, j, MessageBytes), batch.Messages[i])
			copy(slotAt(pubs, j, PublicKeyBytes), batch.PublicKeys[i])
		}
		out := make([]byte, m)

		if status := p.selector.VerifySignatures(sigs, msgs, pubs, m, out); status != StatusOK {
			log.Warn("Signature batch failed on every backend", "status", status)
			p.fallbackSignatures(batch, misses)
			return
		}

		for j, i := range misses {
			batch.Results[i] = out[j] != 0
			p.sigCache.Add(keys[i], batch.Results[i])
		}
	}

	if batch.Callback != nil {
		batch.Callback(batch.Results, nil)
	}
}

// fallbackSignatures verifies items directly through the engine. A nil
// misses slice means every item.
func (p *GPUProcessor) fallbackSignatures(batch *SignatureBatch, misses []int) {
	if misses == nil {
		misses = make([]int, len(batch.Signatures))
		for i := range misses {
			misses[i] = i
		}
	}
	var sig [SignatureBytes]byte
	var msg [MessageBytes]byte
	var pub [PublicKeyBytes]byte
	for _, i := range misses {
		// Re-slot so the engine sees the same fixed widths as a backend.
		sig = [SignatureBytes]byte{}
		msg = [MessageBytes]byte{}
		pub = [PublicKeyBytes]byte{}
		copy(sig[:], batch.Signatures[i])
		copy(msg[:], batch.Messages[i])
		copy(pub[:], batch.PublicKeys[i])
		batch.Results[i] = p.engine.Verify(sig[:], msg[:], pub[:])
	}
	if batch.Callback != nil {
		batch.Callback(batch.Results, nil)
	}
}

func (p *GPUProcessor) processTransactions(batch *TransactionBatch) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Transaction batch processing panicked", "panic", r)
			if batch.Callback != nil {
				batch.Callback(nil, fmt.Errorf("transaction batch panicked: %v", r))
			}
		}
	}()

	count := len(batch.Transactions)
	items := make([][]byte, count)
	for i, tx := range batch.Transactions {
		encoded, err := tx.MarshalBinary()
		if err != nil {
			// Leave the slot empty; the engine reports it as malformed.
			log.Warn("Failed to marshal transaction", "hash", tx.Hash(), "error", err)
			continue
		}
		items[i] = encoded
	}

	in := p.slotBuffer(count * TxSlotBytes)
	defer p.memoryPool.Put(in)

	lengths := packSlots(in, items, TxSlotBytes)
	out := make([]byte, count*TxResultBytes)

	if status := p.selector.ProcessTransactions(in, lengths, count, out); status != StatusOK {
		if batch.Callback != nil {
			batch.Callback(nil, fmt.Errorf("transaction batch aborted with status %d", status))
		}
		return
	}

	for i := 0; i < count; i++ {
		entry := slotAt(out, i, TxResultBytes)

		var hash common.Hash
		copy(hash[:], entry[txResultHashOffset:txResultHashOffset+HashOutputBytes])
		if (hash == common.Hash{}) {
			hash = batch.Transactions[i].Hash()
		}

		valid := entry[txResultValidOffset] != 0
		errCode := entry[txResultErrOffset]
		gas := binary.LittleEndian.Uint64(entry[txResultGasOffset : txResultGasOffset+8])
		if gas == 0 {
			gas = batch.Transactions[i].Gas()
		}

		res := &TxResult{
			Hash:    hash,
			Valid:   valid && errCode == 0,
			GasUsed: gas,
		}
		if errCode != 0 {
			res.Error = errors.New("transaction decode failed")
		}
		batch.Results[i] = res
	}

	if batch.Callback != nil {
		batch.Callback(batch.Results, nil)
	}
}

// IsGPUAvailable returns true if a GPU backend is active
func (p *GPUProcessor) IsGPUAvailable() bool {
	return p.selector.IsGPUAvailable()
}

// GetGPUType returns the active backend type
func (p *GPUProcessor) GetGPUType() GPUType {
	return p.selector.ActiveType()
}

// Close gracefully shuts down the processor
func (p *GPUProcessor) Close() error {
	log.Info("Shutting down GPU processor")

	p.cancel()
	p.wg.Wait()
	p.workers.Release()
	p.selector.Cleanup()

	log.Info("GPU processor shutdown complete")
	return nil
}

// Global GPU processor instance. Callers serialize Init/Close against
// in-flight batch submissions.
var globalGPUProcessor *GPUProcessor

// InitGlobalGPUProcessor initializes the global GPU processor
func InitGlobalGPUProcessor(config *Config) error {
	if globalGPUProcessor != nil {
		globalGPUProcessor.Close()
	}

	var err error
	globalGPUProcessor, err = NewGPUProcessor(config)
	return err
}

// GetGlobalGPUProcessor returns the global GPU processor
func GetGlobalGPUProcessor() *GPUProcessor {
	return globalGPUProcessor
}

// CloseGlobalGPUProcessor closes the global GPU processor
func CloseGlobalGPUProcessor() error {
	if globalGPUProcessor != nil {
		err := globalGPUProcessor.Close()
		globalGPUProcessor = nil
		return err
	}
	return nil
}

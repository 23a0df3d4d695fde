// Copyright 2024 The Splendor Authors
// This file implements backend selection and runtime fallback

package gpu

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// SelectorState tracks which backend currently serves batch calls.
type SelectorState int

const (
	StateUninitialized SelectorState = iota
	StateCUDAActive
	StateOpenCLActive
	StateCPUActive
	StateAllFailed
)

func (s SelectorState) String() string {
	switch s {
	case StateCUDAActive:
		return "cuda-active"
	case StateOpenCLActive:
		return "opencl-active"
	case StateCPUActive:
		return "cpu-active"
	case StateAllFailed:
		return "all-failed"
	default:
		return "uninitialized"
	}
}

// Selector probes backends in priority order at Init and routes every batch
// call to the active one. When a hash or signature batch fails on a GPU
// backend it demotes to the next backend and replays the same batch, so
// device trouble never surfaces to the caller as a failed batch.
// Transaction batches are the exception: a nonzero status there is
// per-item-fatal application semantics and is returned verbatim, because
// replaying a consensus-relevant batch on a different backend could mask a
// real divergence.
//
// The mutex guards only the Selector's own state word. Callers still
// serialize Init and Cleanup against in-flight batch calls; concurrent
// batch submissions are safe only when the active backend documents
// concurrent submission support.
type Selector struct {
	mu       sync.Mutex
	backends []Accelerator
	active   int // index into backends, -1 when none is usable
	devices  int
	state    SelectorState
}

// NewSelector builds a controller over backends in priority order. With no
// arguments it uses the standard CUDA, OpenCL, CPU ladder.
func NewSelector(backends ...Accelerator) *Selector {
	if len(backends) == 0 {
		backends = DefaultBackends(GPUTypeCUDA, nil)
	}
	return &Selector{backends: backends, active: -1}
}

// DefaultBackends returns the probe ladder honoring a preferred GPU type.
// The CPU backend is always last; its Init cannot fail.
func DefaultBackends(preferred GPUType, engine Engine) []Accelerator {
	cuda := NewCUDAAccelerator()
	opencl := NewOpenCLAccelerator()
	cpu := NewCPUAccelerator(engine)
	if preferred == GPUTypeOpenCL {
		return []Accelerator{opencl, cuda, cpu}
	}
	return []Accelerator{cuda, opencl, cpu}
}

func stateForKind(kind GPUType) SelectorState {
	switch kind {
	case GPUTypeCUDA:
		return StateCUDAActive
	case GPUTypeOpenCL:
		return StateOpenCLActive
	default:
		return StateCPUActive
	}
}

// Init probes the backend ladder and activates the first one that reports a
// device. It returns the active backend's device count, or 0 when every
// backend failed. Calling Init again without a Cleanup is a no-op that
// returns the same device count.
func (s *Selector) Init() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized && s.state != StateAllFailed {
		return s.devices
	}

	for i, b := range s.backends {
		if n := b.Init(); n > 0 {
			s.active = i
			s.devices = n
			s.state = stateForKind(b.Kind())
			log.Info("Acceleration backend active", "backend", b.Kind(), "devices", n)
			return n
		}
		log.Warn("Acceleration backend unavailable", "backend", b.Kind())
	}

	s.active = -1
	s.devices = 0
	s.state = StateAllFailed
	log.Warn("No acceleration backend available")
	return 0
}

// State returns the controller's current state.
func (s *Selector) State() SelectorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveType returns the active backend kind. GPUTypeNone covers both the
// CPU backend and the not-initialized case.
func (s *Selector) ActiveType() GPUType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active < 0 {
		return GPUTypeNone
	}
	return s.backends[s.active].Kind()
}

// IsGPUAvailable reports whether a GPU-backed accelerator is active.
func (s *Selector) IsGPUAvailable() bool {
	t := s.ActiveType()
	return t == GPUTypeCUDA || t == GPUTypeOpenCL
}

func (s *Selector) current() Accelerator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active < 0 {
		return nil
	}
	return s.backends[s.active]
}

// demoteFrom retires the failed backend and activates the next one in the
// ladder, returning the replacement. When another goroutine already demoted,
// the current backend is returned unchanged. ok is false once the ladder is
// exhausted.
func (s *Selector) demoteFrom(failed Accelerator) (Accelerator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active < 0 {
		return nil, false
	}
	if cur := s.backends[s.active]; cur != failed {
		return cur, true
	}

	failed.Cleanup()
	for i := s.active + 1; i < len(s.backends); i++ {
		if n := s.backends[i].Init(); n > 0 {
			log.Warn("Acceleration backend downgraded", "from", failed.Kind(), "to", s.backends[i].Kind())
			s.active = i
			s.devices = n
			s.state = stateForKind(s.backends[i].Kind())
			return s.backends[i], true
		}
	}

	s.active = -1
	s.devices = 0
	s.state = StateAllFailed
	log.Error("All acceleration backends failed")
	return nil, false
}

// ProcessHashes routes a hash batch to the active backend, demoting and
// replaying on backend failure.
func (s *Selector) ProcessHashes(inputs []byte, lengths []uint32, count int, out []byte) int32 {
	if !hashBatchValid(inputs, lengths, count, out) {
		return StatusInvalidBatch
	}
	b := s.current()
	if b == nil {
		return StatusInvalidBatch
	}
	for {
		status := b.ProcessHashes(inputs, lengths, count, out)
		if status == StatusOK {
			return status
		}
		next, ok := s.demoteFrom(b)
		if !ok {
			return status
		}
		b = next
	}
}

// VerifySignatures routes a signature batch with the same demotion policy
// as hashes. Per-item validity lands in out either way.
func (s *Selector) VerifySignatures(sigs, msgs, keys []byte, count int, out []byte) int32 {
	if !signatureBatchValid(sigs, msgs, keys, count, out) {
		return StatusInvalidBatch
	}
	b := s.current()
	if b == nil {
		return StatusInvalidBatch
	}
	for {
		status := b.VerifySignatures(sigs, msgs, keys, count, out)
		if status == StatusOK {
			return status
		}
		next, ok := s.demoteFrom(b)
		if !ok {
			return status
		}
		b = next
	}
}

// ProcessTransactions routes a transaction batch to the active backend. Any
// nonzero status is returned verbatim without demotion; the caller decides
// whether to resubmit a trimmed batch.
func (s *Selector) ProcessTransactions(txs []byte, lengths []uint32, count int, results []byte) int32 {
	if !txBatchValid(txs, lengths, count, results) {
		return StatusInvalidBatch
	}
	b := s.current()
	if b == nil {
		return StatusInvalidBatch
	}
	return b.ProcessTransactions(txs, lengths, count, results)
}

// Cleanup releases every backend and returns the controller to the
// uninitialized state. Safe to call at any point, including before Init.
func (s *Selector) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.backends {
		b.Cleanup()
	}
	s.active = -1
	s.devices = 0
	s.state = StateUninitialized
}

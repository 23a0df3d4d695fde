// Copyright 2024 The Splendor Authors
// This file holds processor configuration

package gpu

import (
	"github.com/shirou/gopsutil/v3/mem"
)

// Config holds configuration for batch processing
type Config struct {
	PreferredGPUType   GPUType `json:"preferredGpuType"`
	MaxBatchSize       int     `json:"maxBatchSize"`
	MaxMemoryUsage     uint64  `json:"maxMemoryUsage"`
	HashWorkers        int     `json:"hashWorkers"`
	SignatureWorkers   int     `json:"signatureWorkers"`
	TxWorkers          int     `json:"txWorkers"`
	SignatureCacheSize int     `json:"signatureCacheSize"`
	EnablePipelining   bool    `json:"enablePipelining"`
}

const (
	defaultMaxBatchSize       = 100000
	defaultWorkers            = 32
	defaultSignatureCacheSize = 1024
	defaultMaxMemoryUsage     = 4 << 30
)

// DefaultConfig returns a configuration sized from the host. Memory budget
// is half of system RAM so the node itself keeps headroom; batch and worker
// counts follow the tuning used on production validators.
func DefaultConfig() *Config {
	maxMemory := uint64(defaultMaxMemoryUsage)
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		maxMemory = vm.Total / 2
	}

	return &Config{
		PreferredGPUType:   GPUTypeCUDA,
		MaxBatchSize:       defaultMaxBatchSize,
		MaxMemoryUsage:     maxMemory,
		HashWorkers:        defaultWorkers,
		SignatureWorkers:   defaultWorkers,
		TxWorkers:          defaultWorkers,
		SignatureCacheSize: defaultSignatureCacheSize,
		EnablePipelining:   true,
	}
}

// sanitize fills zero values with defaults so a partially populated config
// still yields a working processor.
func (c *Config) sanitize() {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.HashWorkers <= 0 {
		c.HashWorkers = defaultWorkers
	}
	if c.SignatureWorkers <= 0 {
		c.SignatureWorkers = defaultWorkers
	}
	if c.TxWorkers <= 0 {
		c.TxWorkers = defaultWorkers
	}
	if c.SignatureCacheSize <= 0 {
		c.SignatureCacheSize = defaultSignatureCacheSize
	}
	if c.MaxMemoryUsage == 0 {
		c.MaxMemoryUsage = defaultMaxMemoryUsage
	}
}

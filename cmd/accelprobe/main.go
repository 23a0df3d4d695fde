// Copyright 2024 The Splendor Authors
// accelprobe reports which acceleration backend a host provides and runs a
// self-check batch through each processing path.

package main

import (
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/splendor-labs/accel/gpu"
)

func usage() {
	fmt.Fprintf(os.Stderr, `accelprobe - acceleration backend probe and self-test

Usage:
  # Probe the backend ladder and print the active backend
  accelprobe probe

  # Run a hash/signature/transaction batch through the active backend
  accelprobe selftest [-count N]

Notes:
  - GPU backends require a binary built with the 'gpu' tag; otherwise the
    probe lands on the CPU backend.
  - Exit status is nonzero when the self-test finds a mismatch.

`)
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	count := flag.Int("count", 64, "items per self-test batch")
	preferOpenCL := flag.Bool("opencl", false, "probe OpenCL before CUDA")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	preferred := gpu.GPUTypeCUDA
	if *preferOpenCL {
		preferred = gpu.GPUTypeOpenCL
	}

	switch flag.Arg(0) {
	case "probe":
		selector := gpu.NewSelector(gpu.DefaultBackends(preferred, nil)...)
		devices := selector.Init()
		defer selector.Cleanup()
		fmt.Printf("state:   %s\n", selector.State())
		fmt.Printf("backend: %s\n", selector.ActiveType())
		fmt.Printf("devices: %d\n", devices)
	case "selftest":
		if err := selfTest(preferred, *count); err != nil {
			log.Fatalf("selftest: %v", err)
		}
		fmt.Println("ok")
	default:
		usage()
	}
}

func selfTest(preferred gpu.GPUType, count int) error {
	config := gpu.DefaultConfig()
	config.PreferredGPUType = preferred
	config.HashWorkers = 2
	config.SignatureWorkers = 2
	config.TxWorkers = 2

	p, err := gpu.NewGPUProcessor(config)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := hashCheck(p, count); err != nil {
		return err
	}
	if err := signatureCheck(p, count); err != nil {
		return err
	}
	if err := transactionCheck(p, count); err != nil {
		return err
	}

	stats := p.GetStats()
	fmt.Printf("backend: %s  hashes=%d sigs=%d txs=%d\n",
		stats.GPUType, stats.ProcessedHashes, stats.ProcessedSigs, stats.ProcessedTxs)
	return nil
}

func hashCheck(p *gpu.GPUProcessor, count int) error {
	inputs := make([][]byte, count)
	for i := range inputs {
		inputs[i] = []byte(fmt.Sprintf("accelprobe-hash-%d", i))
	}

	errc := make(chan error, 1)
	err := p.ProcessHashesBatch(inputs, func(results [][]byte, e error) {
		if e != nil {
			errc <- e
			return
		}
		for i, input := range inputs {
			expected := crypto.Keccak256(input)
			if string(results[i]) != string(expected) {
				errc <- fmt.Errorf("hash %d mismatch", i)
				return
			}
		}
		errc <- nil
	})
	if err != nil {
		return err
	}
	return <-errc
}

func signatureCheck(p *gpu.GPUProcessor, count int) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	pub := crypto.FromECDSAPub(&key.PublicKey)

	sigs := make([][]byte, count)
	msgs := make([][]byte, count)
	pubs := make([][]byte, count)
	for i := range sigs {
		msg := crypto.Keccak256([]byte(fmt.Sprintf("accelprobe-sig-%d", i)))
		sig, err := crypto.Sign(msg, key)
		if err != nil {
			return err
		}
		if i%2 == 1 {
			sig[10] ^= 0xFF // every odd item must come back invalid
		}
		sigs[i], msgs[i], pubs[i] = sig, msg, pub
	}

	errc := make(chan error, 1)
	err = p.ProcessSignaturesBatch(sigs, msgs, pubs, func(results []bool, e error) {
		if e != nil {
			errc <- e
			return
		}
		for i, ok := range results {
			if want := i%2 == 0; ok != want {
				errc <- fmt.Errorf("signature %d: have %v want %v", i, ok, want)
				return
			}
		}
		errc <- nil
	})
	if err != nil {
		return err
	}
	return <-errc
}

func transactionCheck(p *gpu.GPUProcessor, count int) error {
	chainID := big.NewInt(1337)
	signer := types.LatestSignerForChainID(chainID)
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	to := crypto.PubkeyToAddress(key.PublicKey)

	txs := make([]*types.Transaction, count)
	for i := range txs {
		tx := types.NewTransaction(uint64(i), to, big.NewInt(1), 21000, big.NewInt(42_000_000_000), nil)
		signed, err := types.SignTx(tx, signer, key)
		if err != nil {
			return err
		}
		txs[i] = signed
	}

	errc := make(chan error, 1)
	err = p.ProcessTransactionsBatch(txs, func(results []*gpu.TxResult, e error) {
		if e != nil {
			errc <- e
			return
		}
		for i, res := range results {
			if !res.Valid || res.Hash != txs[i].Hash() {
				errc <- fmt.Errorf("transaction %d failed validation", i)
				return
			}
		}
		errc <- nil
	})
	if err != nil {
		return err
	}
	return <-errc
}

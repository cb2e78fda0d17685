package main

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/fedkv/sqlevel/pkg/kv"
)

var (
	benchKeys      int
	benchValueSize int
	benchBatchSize int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Measures put, get, batch, and scan throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				return runBench(cmd.Context(), s)
			})
		},
	}
)

func init() {
	benchCmd.Flags().IntVar(&benchKeys, "keys", 100, "how many distinct keys to spread writes over")
	benchCmd.Flags().IntVar(&benchValueSize, "value-size", 128, "value size in bytes")
	benchCmd.Flags().IntVar(&benchBatchSize, "batch-size", 50, "operations per batch in the batch benchmark")
}

func runBench(ctx context.Context, s kv.Store) error {
	value := make([]byte, benchValueSize)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(value)

	key := func(i int) []byte {
		return []byte(fmt.Sprintf("bench_%06d", i%benchKeys))
	}

	results := map[string]testing.BenchmarkResult{}

	results["put"] = testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if err := s.Put(ctx, key(i), value); err != nil {
				b.Fatalf("put: %v", err)
			}
		}
	})

	results["get"] = testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, _, err := s.Get(ctx, key(i)); err != nil {
				b.Fatalf("get: %v", err)
			}
		}
	})

	results["batch"] = testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ops := make([]kv.Op, 0, benchBatchSize)
			for j := 0; j < benchBatchSize; j++ {
				ops = append(ops, kv.Put(key(i*benchBatchSize+j), value))
			}
			if err := s.Batch(ctx, ops); err != nil {
				b.Fatalf("batch: %v", err)
			}
		}
	})

	results["scan"] = testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			it, err := s.Iterator(kv.IterOptions{})
			if err != nil {
				b.Fatalf("iterator: %v", err)
			}
			for it.Next() {
			}
			it.Close()
		}
	})

	fmt.Printf("%-8s %12s %14s\n", "op", "iterations", "ns/op")
	for _, name := range []string{"put", "get", "batch", "scan"} {
		r := results[name]
		fmt.Printf("%-8s %12d %14d\n", name, r.N, r.NsPerOp())
	}

	return s.Clear(ctx)
}

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"lsmkv/pkg/store"
)

type benchmarkResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
	AvgLatency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntP("ops", "o", 10_000, "operations per phase")
	benchCmd.Flags().IntP("concurrency", "j", 8, "goroutines for the concurrent phases")
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "measure write, read and scan throughput against the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := cmd.Flags().GetInt("ops")
		if err != nil {
			return err
		}
		concurrency, err := cmd.Flags().GetInt("concurrency")
		if err != nil {
			return err
		}
		if ops < 1 || concurrency < 1 {
			return fmt.Errorf("ops and concurrency must be positive")
		}

		return withStore(func(st *store.Store) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== LSMDB Benchmark ===")
			fmt.Fprintf(out, "Dir: %s, flush threshold: %d bytes\n", cfg.Store.Path, cfg.Store.FlushThresholdBytes)

			fmt.Fprintf(out, "\nSequential Writes (%d operations)\n", ops)
			printResult(out, runOps(ops, 1, func(g, i int) error {
				return st.Upsert([]byte(fmt.Sprintf("bench_key_%d_%d", g, i)), []byte(fmt.Sprintf("bench_value_%d", i)))
			}))

			fmt.Fprintf(out, "\nSequential Reads (%d operations)\n", ops)
			printResult(out, runOps(ops, 1, func(g, i int) error {
				return readKey(st, fmt.Sprintf("bench_key_%d_%d", g, i))
			}))

			fmt.Fprintf(out, "\nConcurrent Writes (%d operations, %d goroutines)\n", ops, concurrency)
			printResult(out, runOps(ops, concurrency, func(g, i int) error {
				return st.Upsert([]byte(fmt.Sprintf("bench_ckey_%d_%d", g, i)), []byte(fmt.Sprintf("bench_value_%d", i)))
			}))

			fmt.Fprintf(out, "\nConcurrent Reads (%d operations, %d goroutines)\n", ops, concurrency)
			printResult(out, runOps(ops, concurrency, func(g, i int) error {
				return readKey(st, fmt.Sprintf("bench_ckey_%d_%d", g, i))
			}))

			fmt.Fprintln(out, "\nFull Scan")
			printResult(out, runOps(1, 1, func(int, int) error {
				it, err := st.RangeFrom(nil)
				if err != nil {
					return err
				}
				for ; it.Valid(); it.Next() {
				}
				if err := it.Err(); err != nil {
					_ = it.Close()
					return err
				}
				return it.Close()
			}))

			fmt.Fprintln(out, "\n=== Benchmark Complete ===")
			return nil
		})
	},
}

func readKey(st *store.Store, key string) error {
	_, found, err := st.Get([]byte(key))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%q: %w", key, errNotFound)
	}
	return nil
}

// runOps spreads totalOps calls of op over concurrency goroutines. op gets the
// goroutine index and the per-goroutine operation index.
func runOps(totalOps, concurrency int, op func(g, i int) error) benchmarkResult {
	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0
	latencies := make([]time.Duration, 0, totalOps)

	opsPerGoroutine := totalOps / concurrency
	remainder := totalOps % concurrency

	for g := 0; g < concurrency; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()

			ops := opsPerGoroutine
			if g < remainder {
				ops++
			}

			for i := 0; i < ops; i++ {
				opStart := time.Now()
				err := op(g, i)
				latency := time.Since(opStart)

				mu.Lock()
				if err == nil {
					successful++
				} else {
					failed++
				}
				latencies = append(latencies, latency)
				mu.Unlock()
			}
		}(g)
	}

	wg.Wait()
	duration := time.Since(start)

	var minLat, maxLat, sum time.Duration
	if len(latencies) > 0 {
		minLat, maxLat = latencies[0], latencies[0]
		for _, lat := range latencies {
			minLat = min(minLat, lat)
			maxLat = max(maxLat, lat)
			sum += lat
		}
	}

	result := benchmarkResult{
		TotalOps:      totalOps,
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		MinLatency:    minLat,
		MaxLatency:    maxLat,
	}
	if len(latencies) > 0 {
		result.AvgLatency = sum / time.Duration(len(latencies))
	}
	if duration > 0 {
		result.OpsPerSec = float64(successful) / duration.Seconds()
	}
	return result
}

func printResult(w io.Writer, result benchmarkResult) {
	fmt.Fprintf(w, "  Total Operations: %d\n", result.TotalOps)
	fmt.Fprintf(w, "  Successful: %d\n", result.SuccessfulOps)
	fmt.Fprintf(w, "  Failed: %d\n", result.FailedOps)
	fmt.Fprintf(w, "  Duration: %v\n", result.Duration)
	fmt.Fprintf(w, "  Operations/sec: %.2f\n", result.OpsPerSec)
	fmt.Fprintf(w, "  Avg Latency: %v\n", result.AvgLatency)
	fmt.Fprintf(w, "  Min Latency: %v\n", result.MinLatency)
	fmt.Fprintf(w, "  Max Latency: %v\n", result.MaxLatency)
}

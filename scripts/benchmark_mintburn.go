package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// MintRequest represents the request to mint paired claims
type MintRequest struct {
	Creditor   string `json:"creditor"`
	Collateral string `json:"collateral"`
	Tier       uint8  `json:"tier"`
}

// MintResponse represents the response after a mint
type MintResponse struct {
	PositionID    uint64 `json:"position_id"`
	StableMinted  string `json:"stable_minted"`
	LeverCredited string `json:"lever_credited"`
	MintPrice     string `json:"mint_price"`
}

// BurnRequest represents the request to burn paired claims
type BurnRequest struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"`
	Percentage string `json:"percentage"`
}

// BurnResponse represents the response after a burn
type BurnResponse struct {
	PositionID         uint64 `json:"position_id"`
	LeverBurned        string `json:"lever_burned"`
	UnderlyingReturned string `json:"underlying_returned"`
}

// PriceResponse represents the posted oracle price
type PriceResponse struct {
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
	Valid     bool   `json:"valid"`
}

// BenchmarkResults holds all test results
type BenchmarkResults struct {
	Mints          int64
	Burns          int64
	MintSuccess    int64
	BurnSuccess    int64
	MintFailed     int64
	BurnFailed     int64
	RoundTrips     int64
	MintLatencies  []time.Duration
	BurnLatencies  []time.Duration
	RoundLatencies []time.Duration
	mu             sync.Mutex
}

func (r *BenchmarkResults) AddMint(latency time.Duration, success bool) {
	atomic.AddInt64(&r.Mints, 1)
	if success {
		atomic.AddInt64(&r.MintSuccess, 1)
	} else {
		atomic.AddInt64(&r.MintFailed, 1)
	}
	r.mu.Lock()
	r.MintLatencies = append(r.MintLatencies, latency)
	r.mu.Unlock()
}

func (r *BenchmarkResults) AddBurn(latency time.Duration, success bool) {
	atomic.AddInt64(&r.Burns, 1)
	if success {
		atomic.AddInt64(&r.BurnSuccess, 1)
	} else {
		atomic.AddInt64(&r.BurnFailed, 1)
	}
	r.mu.Lock()
	r.BurnLatencies = append(r.BurnLatencies, latency)
	r.mu.Unlock()
}

func (r *BenchmarkResults) AddRoundTrip(latency time.Duration) {
	atomic.AddInt64(&r.RoundTrips, 1)
	r.mu.Lock()
	r.RoundLatencies = append(r.RoundLatencies, latency)
	r.mu.Unlock()
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avg(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	return total / time.Duration(len(latencies))
}

func min(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	m := latencies[0]
	for _, l := range latencies {
		if l < m {
			m = l
		}
	}
	return m
}

func max(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	m := latencies[0]
	for _, l := range latencies {
		if l > m {
			m = l
		}
	}
	return m
}

func postJSON(client *http.Client, url string, req, resp interface{}) (time.Duration, error) {
	body, _ := json.Marshal(req)
	start := time.Now()

	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return time.Since(start), err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return latency, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return latency, fmt.Errorf("status %d", httpResp.StatusCode)
	}
	return latency, json.NewDecoder(httpResp.Body).Decode(resp)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	roundCount := flag.Int("n", 10000, "Number of mint/burn round trips")
	concurrency := flag.Int("c", 100, "Concurrency level")
	tier := flag.Uint("tier", 2, "Mint tier (0=conservative, 1=moderate, 2=aggressive)")
	collateral := flag.String("collateral", "10", "Collateral per mint")
	outputFile := flag.String("o", "", "Output JSON report file")
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║       TrancheFi Custodian Benchmark - Mint/Burn Stress Test      ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Configuration:\n")
	fmt.Printf("  API URL:      %s\n", *baseURL)
	fmt.Printf("  Round Trips:  %d (mint + full burn each)\n", *roundCount)
	fmt.Printf("  Concurrency:  %d\n", *concurrency)
	fmt.Printf("  Tier:         %d\n", *tier)
	fmt.Printf("  Collateral:   %s\n", *collateral)
	fmt.Println()

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        1000,
			MaxIdleConnsPerHost: 200,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Check health
	fmt.Print("Checking API health... ")
	resp, err := client.Get(*baseURL + "/health")
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("FAILED: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")

	// Mints reject on a stale oracle, so fail fast here
	fmt.Print("Checking oracle price... ")
	resp, err = client.Get(*baseURL + "/v1/price")
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	var price PriceResponse
	err = json.NewDecoder(resp.Body).Decode(&price)
	resp.Body.Close()
	if err != nil || !price.Valid {
		fmt.Printf("FAILED: no valid oracle price posted (got %+v)\n", price)
		os.Exit(1)
	}
	fmt.Printf("OK (price %s)\n", price.Price)
	fmt.Println()

	results := &BenchmarkResults{
		MintLatencies:  make([]time.Duration, 0, *roundCount),
		BurnLatencies:  make([]time.Duration, 0, *roundCount),
		RoundLatencies: make([]time.Duration, 0, *roundCount),
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	// Progress tracking
	var processed int64
	total := int64(*roundCount)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := atomic.LoadInt64(&processed)
				pct := float64(p) / float64(total) * 100
				fmt.Printf("\r  Progress: %d/%d (%.1f%%) | Round trips: %d    ",
					p, total, pct, atomic.LoadInt64(&results.RoundTrips))
			}
		}
	}()

	fmt.Println("Starting benchmark...")
	startTime := time.Now()

	for i := 0; i < *roundCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// The keepers only accept bech32 addresses
			owner := sdk.AccAddress(fmt.Sprintf("bench_%d", idx)).String()
			roundStart := time.Now()

			var mintResp MintResponse
			mintLatency, err := postJSON(client, *baseURL+"/v1/mint", &MintRequest{
				Creditor:   owner,
				Collateral: *collateral,
				Tier:       uint8(*tier),
			}, &mintResp)
			results.AddMint(mintLatency, err == nil)
			atomic.AddInt64(&processed, 1)
			if err != nil {
				return
			}

			var burnResp BurnResponse
			burnLatency, err := postJSON(client, *baseURL+"/v1/burn", &BurnRequest{
				Owner:      owner,
				PositionID: mintResp.PositionID,
				Percentage: "100",
			}, &burnResp)
			results.AddBurn(burnLatency, err == nil)
			if err != nil {
				return
			}
			results.AddRoundTrip(time.Since(roundStart))
		}(i)
	}

	wg.Wait()
	close(done)
	elapsed := time.Since(startTime)

	fmt.Printf("\r                                                                              \r")
	fmt.Println()
	fmt.Println()

	// Calculate statistics
	allLatencies := append(results.MintLatencies, results.BurnLatencies...)
	totalOps := results.Mints + results.Burns
	totalSuccess := results.MintSuccess + results.BurnSuccess
	totalFailed := results.MintFailed + results.BurnFailed
	successRate := float64(totalSuccess) / float64(totalOps) * 100
	throughput := float64(totalOps) / elapsed.Seconds()

	// Print results
	fmt.Println("╔══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       BENCHMARK RESULTS                          ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Printf("Test Duration:        %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Throughput:           %.2f ops/sec\n", throughput)
	fmt.Println()

	fmt.Println("── Operation Statistics ───────────────────────────────────────────")
	fmt.Printf("  Total Operations:   %d\n", totalOps)
	fmt.Printf("  Mints:              %d (success: %d, failed: %d)\n", results.Mints, results.MintSuccess, results.MintFailed)
	fmt.Printf("  Burns:              %d (success: %d, failed: %d)\n", results.Burns, results.BurnSuccess, results.BurnFailed)
	fmt.Printf("  Round Trips:        %d\n", results.RoundTrips)
	fmt.Printf("  Success Rate:       %.2f%%\n", successRate)
	fmt.Println()

	fmt.Println("── Overall Latency (all operations) ───────────────────────────────")
	fmt.Printf("  Min:                %v\n", min(allLatencies))
	fmt.Printf("  Max:                %v\n", max(allLatencies))
	fmt.Printf("  Average:            %v\n", avg(allLatencies))
	fmt.Printf("  P50 (Median):       %v\n", percentile(allLatencies, 0.50))
	fmt.Printf("  P90:                %v\n", percentile(allLatencies, 0.90))
	fmt.Printf("  P95:                %v\n", percentile(allLatencies, 0.95))
	fmt.Printf("  P99:                %v\n", percentile(allLatencies, 0.99))
	fmt.Println()

	fmt.Println("── Mint Latency ───────────────────────────────────────────────────")
	fmt.Printf("  Min:                %v\n", min(results.MintLatencies))
	fmt.Printf("  Max:                %v\n", max(results.MintLatencies))
	fmt.Printf("  Average:            %v\n", avg(results.MintLatencies))
	fmt.Printf("  P99:                %v\n", percentile(results.MintLatencies, 0.99))
	fmt.Println()

	fmt.Println("── Burn Latency ───────────────────────────────────────────────────")
	fmt.Printf("  Min:                %v\n", min(results.BurnLatencies))
	fmt.Printf("  Max:                %v\n", max(results.BurnLatencies))
	fmt.Printf("  Average:            %v\n", avg(results.BurnLatencies))
	fmt.Printf("  P99:                %v\n", percentile(results.BurnLatencies, 0.99))
	fmt.Println()

	if len(results.RoundLatencies) > 0 {
		fmt.Println("── Round Trip Latency (mint followed by full burn) ────────────────")
		fmt.Printf("  Min:                %v\n", min(results.RoundLatencies))
		fmt.Printf("  Max:                %v\n", max(results.RoundLatencies))
		fmt.Printf("  Average:            %v\n", avg(results.RoundLatencies))
		fmt.Printf("  P99:                %v\n", percentile(results.RoundLatencies, 0.99))
		fmt.Println()
	}

	fmt.Println("── Assessment ─────────────────────────────────────────────────────")
	if successRate >= 99.9 {
		fmt.Println("  ✅ Success Rate:    Excellent (>99.9%)")
	} else if successRate >= 99 {
		fmt.Println("  ✅ Success Rate:    Good (>99%)")
	} else if successRate >= 95 {
		fmt.Println("  ⚠️  Success Rate:    Acceptable (>95%)")
	} else {
		fmt.Println("  ❌ Success Rate:    Poor (<95%)")
	}

	avgLat := avg(allLatencies)
	if avgLat < 1*time.Millisecond {
		fmt.Println("  ✅ Latency:         Excellent (<1ms avg)")
	} else if avgLat < 10*time.Millisecond {
		fmt.Println("  ✅ Latency:         Good (<10ms avg)")
	} else if avgLat < 100*time.Millisecond {
		fmt.Println("  ⚠️  Latency:         Acceptable (<100ms avg)")
	} else {
		fmt.Println("  ❌ Latency:         High (>100ms avg)")
	}

	if throughput > 10000 {
		fmt.Println("  ✅ Throughput:      Excellent (>10K/s)")
	} else if throughput > 1000 {
		fmt.Println("  ✅ Throughput:      Good (>1K/s)")
	} else if throughput > 100 {
		fmt.Println("  ⚠️  Throughput:      Acceptable (>100/s)")
	} else {
		fmt.Println("  ❌ Throughput:      Low (<100/s)")
	}

	fmt.Println()
	fmt.Println("══════════════════════════════════════════════════════════════════")

	// Save report if requested
	if *outputFile != "" {
		report := map[string]interface{}{
			"config": map[string]interface{}{
				"api_url":     *baseURL,
				"round_trips": *roundCount,
				"concurrency": *concurrency,
				"tier":        *tier,
				"collateral":  *collateral,
			},
			"summary": map[string]interface{}{
				"duration_ms":        elapsed.Milliseconds(),
				"throughput_per_sec": throughput,
				"total_ops":          totalOps,
				"success_ops":        totalSuccess,
				"failed_ops":         totalFailed,
				"success_rate":       successRate,
				"round_trips":        results.RoundTrips,
			},
			"latency_all": map[string]interface{}{
				"min_us": min(allLatencies).Microseconds(),
				"max_us": max(allLatencies).Microseconds(),
				"avg_us": avg(allLatencies).Microseconds(),
				"p50_us": percentile(allLatencies, 0.50).Microseconds(),
				"p90_us": percentile(allLatencies, 0.90).Microseconds(),
				"p95_us": percentile(allLatencies, 0.95).Microseconds(),
				"p99_us": percentile(allLatencies, 0.99).Microseconds(),
			},
			"latency_mint": map[string]interface{}{
				"min_us": min(results.MintLatencies).Microseconds(),
				"max_us": max(results.MintLatencies).Microseconds(),
				"avg_us": avg(results.MintLatencies).Microseconds(),
				"p99_us": percentile(results.MintLatencies, 0.99).Microseconds(),
			},
			"latency_burn": map[string]interface{}{
				"min_us": min(results.BurnLatencies).Microseconds(),
				"max_us": max(results.BurnLatencies).Microseconds(),
				"avg_us": avg(results.BurnLatencies).Microseconds(),
				"p99_us": percentile(results.BurnLatencies, 0.99).Microseconds(),
			},
			"timestamp": time.Now().Format(time.RFC3339),
		}

		if len(results.RoundLatencies) > 0 {
			report["latency_round_trip"] = map[string]interface{}{
				"min_us": min(results.RoundLatencies).Microseconds(),
				"max_us": max(results.RoundLatencies).Microseconds(),
				"avg_us": avg(results.RoundLatencies).Microseconds(),
				"p99_us": percentile(results.RoundLatencies, 0.99).Microseconds(),
			}
		}

		file, err := os.Create(*outputFile)
		if err != nil {
			fmt.Printf("Failed to create report file: %v\n", err)
		} else {
			defer file.Close()
			encoder := json.NewEncoder(file)
			encoder.SetIndent("", "  ")
			encoder.Encode(report)
			fmt.Printf("\nReport saved to: %s\n", *outputFile)
		}
	}
}

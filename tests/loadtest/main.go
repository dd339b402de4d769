package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strd/internal/identity"
	"strd/internal/models"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"go.uber.org/atomic"
)

var (
	foregroundURL = pflag.String("foreground", "http://127.0.0.1:8470", "foreground base url")
	monitorURL    = pflag.String("monitor", "http://127.0.0.1:8471", "monitor base url")
	numWorkers    = pflag.Int("workers", 50, "concurrent workers")
	testDuration  = pflag.Duration("duration", 10*time.Second, "duration of each phase")
	handleList    = pflag.StringSlice("handles", []string{"reader-handle", "game-handle"}, "raw app handles to report usage for")
	rewardList    = pflag.StringSlice("rewards", []string{"game-handle"}, "raw handles of the reward apps")
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

var (
	handles      []models.AppHandle
	tokens       []string
	rewardTokens []string
)

func main() {
	pflag.Parse()
	for _, h := range *handleList {
		handle := models.AppHandle(h)
		handles = append(handles, handle)
		tokens = append(tokens, identity.Hash(handle))
	}
	for _, h := range *rewardList {
		rewardTokens = append(rewardTokens, identity.Hash(models.AppHandle(h)))
	}

	fmt.Println("=== STRD Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Handles: %d\n\n", *numWorkers, *testDuration, len(handles))

	fmt.Print("Waiting for processes... ")
	for _, base := range []string{*foregroundURL, *monitorURL} {
		if !waitFor(base + "/health") {
			fmt.Printf("FAILED: %s not responding\n", base)
			return
		}
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Usage samples (POST /usage) ---")
	runPhase(*testDuration, doUsage)

	fmt.Println("\nWaiting 2s for flush and drain...")
	time.Sleep(2 * time.Second)

	fmt.Println("\n--- Phase 2: Mixed load (50% samples, 50% reads) ---")
	runPhase(*testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.50:
			return doUsage(rng)
		case r < 0.65:
			return doGetPoints()
		case r < 0.80:
			return doGetDecision(rng)
		case r < 0.95:
			return doCanUnlock(rng)
		default:
			return doGet("GET /apps", *foregroundURL+"/apps")
		}
	})

	fmt.Println("\n--- Phase 3: Read-heavy load (10% samples, 90% reads) ---")
	runPhase(*testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doUsage(rng)
		case r < 0.40:
			return doGetPoints()
		case r < 0.70:
			return doGetDecision(rng)
		default:
			return doCanUnlock(rng)
		}
	})
}

func waitFor(u string) bool {
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(u)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < *numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Inc()
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	if totalOps == 0 {
		return
	}
	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func doUsage(rng *rand.Rand) result {
	sample := models.UsageSample{
		Handle:  handles[rng.Intn(len(handles))],
		Seconds: rng.Intn(30) + 1,
		At:      time.Now(),
	}
	data, _ := json.Marshal(sample)
	start := time.Now()
	resp, err := httpClient.Post(*monitorURL+"/usage", "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{"POST /usage", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"POST /usage", resp.StatusCode, lat, resp.StatusCode != http.StatusAccepted}
}

func doGetPoints() result {
	q := url.Values{"reward": rewardTokens}
	return doGet("GET /points", *foregroundURL+"/points?"+q.Encode())
}

func doGetDecision(rng *rand.Rand) result {
	token := tokens[rng.Intn(len(tokens))]
	return doGet("GET /decision", *foregroundURL+"/decision?token="+token)
}

func doCanUnlock(rng *rand.Rand) result {
	token := tokens[rng.Intn(len(tokens))]
	return doGet("GET /can-unlock", *foregroundURL+"/can-unlock?token="+token)
}

// doGet counts 404 as success since tokens outside the catalog are expected.
func doGet(endpoint, u string) result {
	start := time.Now()
	resp, err := httpClient.Get(u)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
	return result{endpoint, resp.StatusCode, lat, !ok}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

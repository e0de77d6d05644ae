package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const outcomeOK = "ok"

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type stockReport struct {
	Initial     int64 `json:"initial"`
	Final       int64 `json:"final"`
	UnitsSold   int64 `json:"units_sold"`
	Oversold    bool  `json:"oversold"`
	Consistent  bool  `json:"consistent"`
	SoldOut     bool  `json:"sold_out"`
	OrdersSaved int   `json:"orders_saved"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Orders          int64            `json:"orders"`
	Succeeded       int64            `json:"succeeded"`
	Failed          int64            `json:"failed"`
	RPS             float64          `json:"rps"`
	Outcomes        map[string]int64 `json:"outcomes"`
	LatencyMs       latencySummary   `json:"latency_ms"`
	Stock           stockReport      `json:"stock"`
}

// collector собирает исходы и задержки CreateOrder из нескольких воркеров.
type collector struct {
	mu        sync.Mutex
	outcomes  map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{outcomes: make(map[string]int64)}
}

func (c *collector) record(outcome string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes[outcome]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Outcomes:        make(map[string]int64, len(c.outcomes)),
		LatencyMs:       buildLatencySummary(c.latencies),
	}
	for outcome, count := range c.outcomes {
		result.Outcomes[outcome] = count
		result.Orders += count
		if outcome == outcomeOK {
			result.Succeeded += count
		} else {
			result.Failed += count
		}
	}
	if duration > 0 {
		result.RPS = float64(result.Orders) / duration.Seconds()
	}
	return result
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Load test summary")
	_, _ = fmt.Fprintf(out, "storage=%s orders=%d concurrency=%d qty=%d succeeded=%d failed=%d\n",
		cfg.storageDriver, result.Orders, cfg.concurrency, cfg.quantity, result.Succeeded, result.Failed)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min,
		result.LatencyMs.Avg,
		result.LatencyMs.P50,
		result.LatencyMs.P95,
		result.LatencyMs.P99,
		result.LatencyMs.Max,
	)

	outcomes := make([]string, 0, len(result.Outcomes))
	for outcome := range result.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		_, _ = fmt.Fprintf(out, "outcome %s: %d\n", outcome, result.Outcomes[outcome])
	}

	_, _ = fmt.Fprintf(out, "stock: initial=%d final=%d sold=%d oversold=%t consistent=%t sold_out=%t\n",
		result.Stock.Initial,
		result.Stock.Final,
		result.Stock.UnitsSold,
		result.Stock.Oversold,
		result.Stock.Consistent,
		result.Stock.SoldOut,
	)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

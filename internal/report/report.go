package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maskproxy/maskproxy/internal/logging"
)

type Summary struct {
	Total          int            `json:"total"`
	Forwarded      int            `json:"forwarded"`
	Rejected       int            `json:"rejected"`
	UpstreamErrors int            `json:"upstream_errors"`
	Misconfigured  int            `json:"misconfigured"`
	Redactions     int            `json:"redactions"`
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	Outcomes       []CountItem    `json:"outcomes"`
	Categories     []CountItem    `json:"categories"`
	StatusCodes    []CountItem    `json:"status_codes"`
	TopPaths       []CountItem    `json:"top_paths"`
	Latency        LatencySummary `json:"latency"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type LatencySummary struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Reader loads exchange records, dropping those older than Since.
type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]logging.Exchange, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return r.decode(file)
}

func (r *Reader) decode(in io.Reader) ([]logging.Exchange, error) {
	var exchanges []logging.Exchange
	dec := json.NewDecoder(bufio.NewReader(in))
	for record := 1; ; record++ {
		var ex logging.Exchange
		err := dec.Decode(&ex)
		if errors.Is(err, io.EOF) {
			return exchanges, nil
		}
		if err != nil {
			return nil, fmt.Errorf("exchange record %d: %w", record, err)
		}
		if !r.Since.IsZero() && ex.Timestamp.Before(r.Since) {
			continue
		}
		exchanges = append(exchanges, ex)
	}
}

func Summarize(exchanges []logging.Exchange) Summary {
	var summary Summary
	if len(exchanges) == 0 {
		return summary
	}

	summary.Start = exchanges[0].Timestamp
	summary.End = exchanges[0].Timestamp

	outcomeCounts := map[string]int{}
	categoryCounts := map[string]int{}
	statusCounts := map[string]int{}
	pathCounts := map[string]int{}
	latencies := make([]int64, 0, len(exchanges))

	for _, ex := range exchanges {
		summary.Total++
		if ex.Timestamp.Before(summary.Start) {
			summary.Start = ex.Timestamp
		}
		if ex.Timestamp.After(summary.End) {
			summary.End = ex.Timestamp
		}

		switch ex.Outcome {
		case logging.OutcomeForwarded:
			summary.Forwarded++
			pathCounts[ex.Path]++
		case logging.OutcomeUnauthorized, logging.OutcomeForbidden, logging.OutcomeNotRouted,
			logging.OutcomeBodyTooLarge, logging.OutcomeBadBody:
			summary.Rejected++
		case logging.OutcomeUpstreamError, logging.OutcomeAborted:
			summary.UpstreamErrors++
		case logging.OutcomeMisconfigured:
			summary.Misconfigured++
		}

		outcomeCounts[string(ex.Outcome)]++
		if ex.StatusCode > 0 {
			statusCounts[strconv.Itoa(ex.StatusCode)]++
		}
		for category, n := range ex.Redactions {
			categoryCounts[category] += n
			summary.Redactions += n
		}

		latencies = append(latencies, ex.DurationMS)
	}

	summary.Outcomes = topCounts(outcomeCounts, len(outcomeCounts))
	summary.Categories = topCounts(categoryCounts, len(categoryCounts))
	summary.StatusCodes = topCounts(statusCounts, 10)
	summary.TopPaths = topCounts(pathCounts, 5)
	summary.Latency = latencySummary(latencies)

	return summary
}

// topCounts orders keys by count, ties broken by key, and keeps at most n.
func topCounts(counts map[string]int, n int) []CountItem {
	if len(counts) == 0 || n <= 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := counts[keys[i]], counts[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}

	items := make([]CountItem, len(keys))
	for i, key := range keys {
		items[i] = CountItem{Key: key, Count: counts[key]}
	}
	return items
}

func latencySummary(durations []int64) LatencySummary {
	if len(durations) == 0 {
		return LatencySummary{}
	}
	sorted := append([]int64(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return LatencySummary{
		P50: nearestRank(sorted, 50),
		P95: nearestRank(sorted, 95),
		P99: nearestRank(sorted, 99),
	}
}

// nearestRank returns the smallest value with at least pct percent of the
// sorted sample at or below it.
func nearestRank(sorted []int64, pct int) float64 {
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return float64(sorted[rank-1])
}

type section struct {
	title string
	items []CountItem
}

func (s Summary) sections() []section {
	return []section{
		{"Outcomes", s.Outcomes},
		{"Redactions by category", s.Categories},
		{"Status codes", s.StatusCodes},
		{"Top forwarded paths", s.TopPaths},
	}
}

func (s Summary) totals() []CountItem {
	return []CountItem{
		{"Total", s.Total},
		{"Forwarded", s.Forwarded},
		{"Rejected", s.Rejected},
		{"Upstream errors", s.UpstreamErrors},
		{"Misconfigured", s.Misconfigured},
		{"Redactions", s.Redactions},
	}
}

func (s Summary) latencyLine() string {
	return fmt.Sprintf("Latency p50/p95/p99 (ms): %.0f/%.0f/%.0f", s.Latency.P50, s.Latency.P95, s.Latency.P99)
}

func RenderText(summary Summary) string {
	var b strings.Builder
	for _, item := range summary.totals() {
		fmt.Fprintf(&b, "%s: %d\n", item.Key, item.Count)
	}
	b.WriteString(summary.latencyLine() + "\n")

	for _, sec := range summary.sections() {
		if len(sec.items) == 0 {
			fmt.Fprintf(&b, "%s: none\n", sec.title)
			continue
		}
		fmt.Fprintf(&b, "%s:\n", sec.title)
		writeItems(&b, sec.items)
	}
	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# maskproxy report\n\n## Totals\n\n")
	for _, item := range summary.totals() {
		fmt.Fprintf(&b, "- %s: %d\n", item.Key, item.Count)
	}
	fmt.Fprintf(&b, "- %s\n\n", summary.latencyLine())

	for _, sec := range summary.sections() {
		fmt.Fprintf(&b, "## %s\n\n", sec.title)
		if len(sec.items) == 0 {
			b.WriteString("- none\n")
		}
		writeItems(&b, sec.items)
		b.WriteString("\n")
	}
	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func writeItems(b *strings.Builder, items []CountItem) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func WriteOutput(path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}

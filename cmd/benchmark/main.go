// Benchmark tool for measuring TenderWatch risk verdicts against the ground
// truth fraud labels of a generated dataset.
//
// Usage:
//
//	go run ./cmd/datagen -seed 42 -out ./data
//	go run ./cmd/benchmark -data ./data -url http://localhost:8080 -floor High
//
// This tool:
//  1. Reads companies.csv and the other CSV files of a dataset directory
//  2. Fetches the verdict of every company from a running server
//  3. Counts a company as flagged when its category reaches the floor
//  4. Calculates precision, recall, F1-score and the confusion matrix
//
// The server must have the same dataset installed (same seed and sizes).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/generator"
)

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Labeled company flagged
	FalsePositives int64 // Clean company flagged
	TrueNegatives  int64 // Clean company not flagged
	FalseNegatives int64 // Labeled company missed

	TotalProcessed int64
	TotalFraud     int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

var categoryRank = map[domain.RiskCategory]int{
	domain.RiskLow:    0,
	domain.RiskMedium: 1,
	domain.RiskHigh:   2,
}

func main() {
	dataDir := flag.String("data", "./data", "Dataset directory written by datagen")
	baseURL := flag.String("url", "http://localhost:8080", "TenderWatch base URL")
	floor := flag.String("floor", "High", "Lowest risk category counted as flagged (High or Medium)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each company result")
	flag.Parse()

	floorRank, ok := categoryRank[domain.RiskCategory(*floor)]
	if !ok {
		fmt.Printf("ERROR: unknown category %q\n", *floor)
		os.Exit(1)
	}

	fmt.Println("=================================================================")
	fmt.Println("           TENDERWATCH BENCHMARK - Labeled Companies")
	fmt.Println("=================================================================")
	fmt.Printf("\nData Dir:    %s\n", *dataDir)
	fmt.Printf("Server URL:  %s\n", *baseURL)
	fmt.Printf("Floor:       %s\n", *floor)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkReady(*baseURL); err != nil {
		fmt.Printf("ERROR: TenderWatch not ready at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure TenderWatch is running:")
		fmt.Println("  go run ./cmd/tenderwatch")
		os.Exit(1)
	}
	fmt.Println("+ TenderWatch is ready")

	ds, err := generator.ReadDir(*dataDir)
	if err != nil {
		fmt.Printf("ERROR: Failed to read dataset: %v\n", err)
		os.Exit(1)
	}
	labeled := make(map[string]bool)
	for _, id := range ds.FraudCompanyIDs() {
		labeled[id] = true
	}
	fmt.Printf("+ Loaded %d companies\n", len(ds.Companies))
	fmt.Printf("  - Labeled: %d (%.2f%%)\n", len(labeled), 100*float64(len(labeled))/float64(len(ds.Companies)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(ds.Companies, labeled, *baseURL, floorRank, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkReady(baseURL string) error {
	resp, err := http.Get(baseURL + "/ready")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(companies []domain.Company, labeled map[string]bool, baseURL string, floorRank, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan domain.Company, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				detail, err := fetchDetail(client, baseURL, c.ID)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.ID, err)
					}
					continue
				}

				actual := labeled[c.ID]
				if actual {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				predicted := categoryRank[detail.RiskCategory] >= floorRank
				switch {
				case predicted && actual:
					atomic.AddInt64(&metrics.TruePositives, 1)
				case predicted && !actual:
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case !predicted && !actual:
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				default:
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok"
					if predicted != actual {
						status = "XX"
					}
					fmt.Printf("%s %s | Labeled: %-5v | %-6s (%.3f) | Escalated: %v\n",
						status, c.ID, actual, detail.RiskCategory, detail.RiskScore, detail.Escalated)
				}
			}
		}()
	}

	for _, c := range companies {
		work <- c
	}
	close(work)

	wg.Wait()

	return metrics
}

func fetchDetail(client *http.Client, baseURL, id string) (*domain.CompanyDetail, error) {
	resp, err := client.Get(baseURL + "/api/companies/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var detail domain.CompanyDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=================================================================")
	fmt.Println("                      BENCHMARK RESULTS")
	fmt.Println("=================================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Labeled:          %d\n", m.TotalFraud)
	fmt.Printf("   Clean:            %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED     CLEAR")
	fmt.Println("              +----------+----------+")
	fmt.Printf("   Actual  F  | %8d | %8d |  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              +----------+----------+")
	fmt.Printf("          NF  | %8d | %8d |  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              +----------+----------+")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged companies, how many are labeled)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of labeled companies, how many were flagged)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)
	fmt.Printf("   Accuracy:   %.4f\n", accuracy)

	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms: %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
}

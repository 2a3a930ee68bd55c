// Benchmark tool for testing Kestrel against labeled feedback data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/feedback.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled feedback records (with is_complaint ground truth)
//   2. Submits each record to Kestrel and runs analysis
//   3. Compares Kestrel's verdict with the actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns: entity, type, dislike_traits (";" separated),
// dislike_text, general_text, is_complaint (0/1).
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledFeedback represents a row from the benchmark dataset.
type LabeledFeedback struct {
	Entity        string
	Type          string
	DislikeTraits []string
	DislikeText   string
	GeneralText   string
	IsComplaint   bool
}

// FeedbackRequest is the Kestrel intake request format.
type FeedbackRequest struct {
	Entity        string   `json:"entity"`
	Type          string   `json:"type,omitempty"`
	DislikeTraits []string `json:"dislikeTraits,omitempty"`
	DislikeText   string   `json:"dislikeText,omitempty"`
	GeneralText   string   `json:"generalText,omitempty"`
}

// AnalyzeResponse is the analysis result format.
type AnalyzeResponse struct {
	FeedbackID     string `json:"feedbackId"`
	Classification struct {
		IsComplaint bool   `json:"isComplaint"`
		Severity    string `json:"severity"`
		Category    string `json:"category"`
	} `json:"classification"`
	Violations []struct {
		Code string `json:"code"`
	} `json:"violations"`
	Priority int `json:"priority"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Complaint detected as complaint
	FalsePositives int64 // Non-complaint flagged as complaint
	TrueNegatives  int64 // Non-complaint passed through
	FalseNegatives int64 // Complaint missed

	TotalProcessed  int64
	TotalComplaints int64
	TotalOther      int64
	TotalErrors     int64
	TotalViolations int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled feedback CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	limit := flag.Int("limit", 10000, "Maximum records to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	complaintsOnly := flag.Bool("complaints-only", false, "Only test labeled complaints")
	verbose := flag.Bool("verbose", false, "Print each record result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/feedback.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("=================================================================")
	fmt.Println("        KESTREL BENCHMARK - Complaint Classification")
	fmt.Println("=================================================================")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Kestrel URL:  %s\n", *baseURL)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	fmt.Printf("\nReading labeled feedback from %s...\n", *csvPath)
	records, err := readFeedbackCSV(*csvPath, *limit, *complaintsOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d records\n", len(records))

	complaintCount := 0
	for _, r := range records {
		if r.IsComplaint {
			complaintCount++
		}
	}
	fmt.Printf("  - Complaints: %d (%.2f%%)\n", complaintCount, 100*float64(complaintCount)/float64(len(records)))
	fmt.Printf("  - Other:      %d (%.2f%%)\n", len(records)-complaintCount, 100*float64(len(records)-complaintCount)/float64(len(records)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(records, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readFeedbackCSV(path string, limit int, complaintsOnly bool) ([]LabeledFeedback, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var records []LabeledFeedback
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isComplaint := record[colIndex["is_complaint"]] == "1"
		if complaintsOnly && !isComplaint {
			continue
		}

		var traits []string
		if raw := record[colIndex["dislike_traits"]]; raw != "" {
			for _, t := range strings.Split(raw, ";") {
				if t = strings.TrimSpace(t); t != "" {
					traits = append(traits, t)
				}
			}
		}

		records = append(records, LabeledFeedback{
			Entity:        record[colIndex["entity"]],
			Type:          record[colIndex["type"]],
			DislikeTraits: traits,
			DislikeText:   record[colIndex["dislike_text"]],
			GeneralText:   record[colIndex["general_text"]],
			IsComplaint:   isComplaint,
		})

		if limit > 0 && len(records) >= limit {
			break
		}
	}

	return records, nil
}

func runBenchmark(records []LabeledFeedback, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledFeedback, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for fb := range work {
				start := time.Now()
				result, err := analyzeFeedback(client, baseURL, fb)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", fb.Entity, err)
					}
					continue
				}

				if fb.IsComplaint {
					atomic.AddInt64(&metrics.TotalComplaints, 1)
				} else {
					atomic.AddInt64(&metrics.TotalOther, 1)
				}
				atomic.AddInt64(&metrics.TotalViolations, int64(len(result.Violations)))

				predicted := result.Classification.IsComplaint
				actual := fb.IsComplaint

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "OK "
					if predicted != actual {
						status = "MISS"
					}
					fmt.Printf("%s %-30s | Label: %-5v | Kestrel: %-5v (%s) | Violations: %d\n",
						status,
						fb.Entity,
						actual,
						predicted,
						result.Classification.Severity,
						len(result.Violations),
					)
				}
			}
		}()
	}

	for _, fb := range records {
		work <- fb
	}
	close(work)

	wg.Wait()
	return metrics
}

func analyzeFeedback(client *http.Client, baseURL string, fb LabeledFeedback) (*AnalyzeResponse, error) {
	req := FeedbackRequest{
		Entity:        fb.Entity,
		Type:          fb.Type,
		DislikeTraits: fb.DislikeTraits,
		DislikeText:   fb.DislikeText,
		GeneralText:   fb.GeneralText,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submit: status %d", resp.StatusCode)
	}

	var submitted struct {
		FeedbackID string `json:"feedbackId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return nil, err
	}

	analyzeResp, err := client.Post(baseURL+"/feedback/"+submitted.FeedbackID+"/analyze", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer analyzeResp.Body.Close()

	if analyzeResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze: status %d", analyzeResp.StatusCode)
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(analyzeResp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=================================================================")
	fmt.Println("                      BENCHMARK RESULTS")
	fmt.Println("=================================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:   %d\n", m.TotalProcessed)
	fmt.Printf("   Total Complaints:  %d\n", m.TotalComplaints)
	fmt.Printf("   Total Other:       %d\n", m.TotalOther)
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)
	fmt.Printf("   Violations Found:  %d\n", m.TotalViolations)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                       Predicted")
	fmt.Println("                   COMPLAINT   OTHER")
	fmt.Printf("   Actual  C      %8d  %8d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("           O      %8d  %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

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

	fmt.Printf("\nCLASSIFICATION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged records, how many were real complaints)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of complaints, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f records/sec\n", rps)
	}

	fmt.Println()
}

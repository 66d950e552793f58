// Benchmark tool for testing FuelGuard against labeled fuel-card data.
//
// Usage:
//
//	go run ./cmd/benchmark -csv /path/to/transactions.csv -url http://localhost:8080
//
// The CSV carries one transaction per row with an is_fraud label:
//
//	transaction_id,vehicle_id,tank_capacity,vehicle_status,provider,
//	timestamp,liters,price_per_liter,fuel_type,station_id,
//	station_lat,station_lon,is_fraud
//
// The tool batches rows into /detect requests, compares the engine's
// verdict with the labels, and reports precision, recall and F1.
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
	"strconv"
	"strings"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

type labeledTransaction struct {
	tx       domain.Transaction
	capacity float64
	status   string
	isFraud  bool
}

type detectResponse struct {
	Results []domain.AnomalyResult   `json:"results"`
	Errors  []domain.EvaluationError `json:"errors"`
}

type metrics struct {
	truePositives  int
	falsePositives int
	trueNegatives  int
	falseNegatives int
	totalErrors    int
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled transactions CSV")
	baseURL := flag.String("url", "http://localhost:8080", "FuelGuard base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	batchSize := flag.Int("batch", 500, "Transactions per /detect request")
	limit := flag.Int("limit", 0, "Maximum transactions to process (0 = all)")
	verbose := flag.Bool("verbose", false, "Print each misclassified transaction")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/transactions.csv [-url http://localhost:8080]")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: FuelGuard not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure FuelGuard is running:")
		fmt.Println("  go run ./cmd/fuelguard")
		os.Exit(1)
	}

	rows, err := readCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: failed to read CSV: %v\n", err)
		os.Exit(1)
	}

	fraudCount := 0
	for _, row := range rows {
		if row.isFraud {
			fraudCount++
		}
	}
	fmt.Printf("Loaded %d transactions (%d labeled fraud)\n", len(rows), fraudCount)

	vehicles := vehiclesFromRows(rows)
	fmt.Printf("Derived %d vehicles from the data\n", len(vehicles))

	start := time.Now()
	m := run(rows, vehicles, *baseURL, *tenantID, *batchSize, *verbose)
	printResults(m, len(rows), time.Since(start))
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

func readCSV(path string, limit int) ([]labeledTransaction, error) {
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

	col := make(map[string]int)
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows []labeledTransaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		field := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		ts, err := time.Parse(time.RFC3339, field("timestamp"))
		if err != nil {
			continue
		}
		liters, _ := strconv.ParseFloat(field("liters"), 64)
		price, _ := strconv.ParseFloat(field("price_per_liter"), 64)
		capacity, _ := strconv.ParseFloat(field("tank_capacity"), 64)
		lat, _ := strconv.ParseFloat(field("station_lat"), 64)
		lon, _ := strconv.ParseFloat(field("station_lon"), 64)

		rows = append(rows, labeledTransaction{
			tx: domain.Transaction{
				ID:            field("transaction_id"),
				Provider:      field("provider"),
				VehicleID:     field("vehicle_id"),
				Timestamp:     ts,
				Liters:        liters,
				PricePerLiter: price,
				TotalAmount:   liters * price,
				FuelType:      field("fuel_type"),
				StationID:     field("station_id"),
				StationLat:    lat,
				StationLon:    lon,
			},
			capacity: capacity,
			status:   field("vehicle_status"),
			isFraud:  field("is_fraud") == "1" || strings.EqualFold(field("is_fraud"), "true"),
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

// vehiclesFromRows derives the reference fleet from the CSV columns.
// The first row carrying a non-zero capacity or status for a vehicle
// wins; missing fields default to an active vehicle with no capacity
// limit.
func vehiclesFromRows(rows []labeledTransaction) []domain.Vehicle {
	type vehicleInfo struct {
		capacity float64
		status   string
	}
	seen := make(map[string]vehicleInfo)
	order := make([]string, 0)

	for _, row := range rows {
		id := row.tx.VehicleID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			order = append(order, id)
		}
		info := seen[id]
		if info.capacity == 0 {
			info.capacity = row.capacity
		}
		if info.status == "" {
			info.status = row.status
		}
		seen[id] = info
	}

	vehicles := make([]domain.Vehicle, 0, len(order))
	for _, id := range order {
		info := seen[id]
		if info.status == "" {
			info.status = string(domain.VehicleActive)
		}
		vehicles = append(vehicles, domain.Vehicle{
			ID:           id,
			TankCapacity: info.capacity,
			Status:       domain.VehicleStatus(info.status),
		})
	}
	return vehicles
}

func run(rows []labeledTransaction, vehicles []domain.Vehicle, baseURL, tenantID string, batchSize int, verbose bool) *metrics {
	m := &metrics{}
	client := &http.Client{Timeout: 60 * time.Second}

	labels := make(map[string]bool, len(rows))
	for _, row := range rows {
		labels[row.tx.ID] = row.isFraud
	}

	for offset := 0; offset < len(rows); offset += batchSize {
		end := offset + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([]domain.Transaction, 0, end-offset)
		for _, row := range rows[offset:end] {
			batch = append(batch, row.tx)
		}

		resp, err := detectBatch(client, baseURL, tenantID, batch, vehicles)
		if err != nil {
			fmt.Printf("ERROR: batch at offset %d failed: %v\n", offset, err)
			m.totalErrors += len(batch)
			continue
		}
		m.totalErrors += len(resp.Errors)

		for _, result := range resp.Results {
			actual := labels[result.TransactionID]
			predicted := result.IsAnomalous

			switch {
			case predicted && actual:
				m.truePositives++
			case predicted && !actual:
				m.falsePositives++
			case !predicted && !actual:
				m.trueNegatives++
			default:
				m.falseNegatives++
			}

			if verbose && predicted != actual {
				fmt.Printf("  MISS %-12s fraud=%-5v verdict=%-5v score=%d %v\n",
					result.TransactionID, actual, predicted, result.RiskScore, result.RuleIDs)
			}
		}
	}

	return m
}

func detectBatch(client *http.Client, baseURL, tenantID string, txs []domain.Transaction, vehicles []domain.Vehicle) (*detectResponse, error) {
	body, err := json.Marshal(domain.DetectRequest{
		Transactions: txs,
		Vehicles:     vehicles,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *metrics, total int, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")
	fmt.Println(strings.Repeat("-", 50))

	fmt.Println("Confusion matrix (rows: actual, cols: predicted)")
	fmt.Printf("             anomalous   clean\n")
	fmt.Printf("  fraud     %9d %7d\n", m.truePositives, m.falseNegatives)
	fmt.Printf("  legit     %9d %7d\n", m.falsePositives, m.trueNegatives)

	precision := 0.0
	if m.truePositives+m.falsePositives > 0 {
		precision = float64(m.truePositives) / float64(m.truePositives+m.falsePositives)
	}
	recall := 0.0
	if m.truePositives+m.falseNegatives > 0 {
		recall = float64(m.truePositives) / float64(m.truePositives+m.falseNegatives)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	fmt.Println()
	fmt.Printf("  Precision:  %.4f\n", precision)
	fmt.Printf("  Recall:     %.4f\n", recall)
	fmt.Printf("  F1-Score:   %.4f\n", f1)
	fmt.Printf("  Rejected:   %d\n", m.totalErrors)
	fmt.Println()
	fmt.Printf("  Duration:   %v\n", duration.Round(time.Millisecond))
	if duration > 0 {
		fmt.Printf("  Throughput: %.0f tx/sec\n", float64(total)/duration.Seconds())
	}
}

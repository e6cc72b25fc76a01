// Benchmark tool for load-testing Kestrel with a synthetic customer population.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -customers 5000
//
// This tool:
//   1. Generates a deterministic synthetic customer population
//   2. Ingests each customer into Kestrel
//   3. Requests next-best-actions for every customer
//   4. Reports latency, throughput, temperature mix, and action mix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Customer mirrors the Kestrel ingest payload.
type Customer struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	Balance      float64       `json:"balance"`
	Currency     string        `json:"currency,omitempty"`
	Segment      string        `json:"segment"`
	Products     []string      `json:"products,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Engagement   Engagement    `json:"engagement"`
	Consent      Consent       `json:"consent"`
	KYC          KYCRecord     `json:"kyc"`
}

type Transaction struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

type Engagement struct {
	Level         int     `json:"level"`
	ExperiencePct float64 `json:"experiencePct"`
}

type Consent struct {
	OptIn    bool     `json:"optIn"`
	Channels []string `json:"channels,omitempty"`
}

type KYCRecord struct {
	Level     string    `json:"level"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// ActionsResponse is the Kestrel actions API response format.
type ActionsResponse struct {
	CustomerID     string   `json:"customerId"`
	Actions        []Action `json:"actions"`
	Count          int      `json:"count"`
	RulesEvaluated int      `json:"rulesEvaluated"`
	RulesFired     int      `json:"rulesFired"`
}

type Action struct {
	ID         string   `json:"id"`
	RuleID     string   `json:"ruleId"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Priority   string   `json:"priority"`
	Confidence float64  `json:"confidence"`
	Channels   []string `json:"channels"`
}

// ScoreResponse is the Kestrel lead scoring API response format.
type ScoreResponse struct {
	Leads []Lead `json:"leads"`
	Count int    `json:"count"`
}

type Lead struct {
	CustomerID  string  `json:"customerId"`
	Score       float64 `json:"score"`
	Temperature string  `json:"temperature"`
}

// Metrics tracks benchmark results
type Metrics struct {
	Ingested      int64
	ActionsServed int64
	TotalActions  int64
	TotalErrors   int64

	// Customers opted out of marketing with zero marketing channels served
	SuppressedCustomers int64

	IngestTimeMs  int64
	ActionsTimeMs int64
}

var segments = []string{"Champions", "Loyal", "Potential", "At-Risk", "Hibernating"}
var categories = []string{"groceries", "dining", "travel", "utilities", "entertainment"}
var products = []string{"checking", "savings", "credit-card", "mortgage", "investment"}

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	count := flag.Int("customers", 1000, "Number of synthetic customers")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Population generator seed")
	optOutRate := flag.Float64("optout", 0.2, "Share of customers opted out of marketing (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each customer result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Synthetic Customer Scoring         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:    %s\n", *tenantID)
	fmt.Printf("Customers:    %d\n", *count)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Seed:         %d\n", *seed)
	fmt.Printf("Opt-out Rate: %.2f\n", *optOutRate)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Generate population
	fmt.Printf("\nGenerating %d synthetic customers...\n", *count)
	customers := generatePopulation(*count, *seed, *optOutRate)
	optedOut := 0
	for _, c := range customers {
		if !c.Consent.OptIn {
			optedOut++
		}
	}
	fmt.Printf("✓ Generated %d customers (%d opted out)\n", len(customers), optedOut)

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics, actionMix := runBenchmark(customers, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Rank the whole population in one call
	fmt.Println("\nRanking population via /leads/score...")
	leads, err := scoreLeads(*baseURL, *tenantID)
	if err != nil {
		fmt.Printf("WARNING: lead scoring failed: %v\n", err)
	}

	// Print results
	printResults(metrics, actionMix, leads, duration)
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

func generatePopulation(count int, seed int64, optOutRate float64) []Customer {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now().UTC()

	customers := make([]Customer, 0, count)
	for i := 0; i < count; i++ {
		segment := segments[rng.Intn(len(segments))]

		// Active segments transact recently, dormant ones months ago
		lastTxDays := rng.Intn(14) + 1
		if segment == "At-Risk" {
			lastTxDays = rng.Intn(60) + 30
		} else if segment == "Hibernating" {
			lastTxDays = rng.Intn(120) + 90
		}

		txCount := rng.Intn(12) + 1
		txs := make([]Transaction, 0, txCount)
		for j := 0; j < txCount; j++ {
			txs = append(txs, Transaction{
				ID:        fmt.Sprintf("tx-%06d-%02d", i, j),
				Amount:    10 + rng.Float64()*490,
				Category:  categories[rng.Intn(len(categories))],
				Timestamp: now.AddDate(0, 0, -(lastTxDays + j*3)),
			})
		}

		productCount := rng.Intn(3) + 1
		owned := make([]string, 0, productCount)
		for j := 0; j < productCount; j++ {
			owned = append(owned, products[(i+j)%len(products)])
		}

		consent := Consent{OptIn: rng.Float64() >= optOutRate}
		if consent.OptIn {
			consent.Channels = []string{"email", "push"}
		}

		kycExpiry := now.AddDate(1, 0, 0)
		if rng.Float64() < 0.1 {
			// Expiring soon so the KYC renewal rule has something to fire on
			kycExpiry = now.AddDate(0, 0, rng.Intn(30))
		}

		customers = append(customers, Customer{
			ID:           fmt.Sprintf("bench-%06d", i),
			Name:         fmt.Sprintf("Benchmark Customer %d", i),
			Email:        fmt.Sprintf("bench-%06d@example.com", i),
			Balance:      rng.Float64() * 120000,
			Currency:     "USD",
			Segment:      segment,
			Products:     owned,
			Transactions: txs,
			Engagement: Engagement{
				Level:         rng.Intn(10) + 1,
				ExperiencePct: rng.Float64() * 100,
			},
			Consent: consent,
			KYC: KYCRecord{
				Level:     "standard",
				ExpiresAt: kycExpiry,
			},
		})
	}

	return customers
}

func runBenchmark(customers []Customer, baseURL, tenantID string, numWorkers int, verbose bool) (*Metrics, map[string]int64) {
	metrics := &Metrics{}

	var mu sync.Mutex
	actionMix := make(map[string]int64)

	// Create work channel
	work := make(chan Customer, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				err := ingestCustomer(client, baseURL, tenantID, c)
				atomic.AddInt64(&metrics.IngestTimeMs, time.Since(start).Milliseconds())
				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR ingest %s -> %v\n", c.ID, err)
					}
					continue
				}
				atomic.AddInt64(&metrics.Ingested, 1)

				start = time.Now()
				actions, err := fetchActions(client, baseURL, tenantID, c.ID)
				atomic.AddInt64(&metrics.ActionsTimeMs, time.Since(start).Milliseconds())
				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR actions %s -> %v\n", c.ID, err)
					}
					continue
				}
				atomic.AddInt64(&metrics.ActionsServed, 1)
				atomic.AddInt64(&metrics.TotalActions, int64(len(actions.Actions)))

				marketing := 0
				mu.Lock()
				for _, a := range actions.Actions {
					actionMix[a.Category]++
					for _, ch := range a.Channels {
						if ch == "email" || ch == "sms" || ch == "push" || ch == "whatsapp" {
							marketing++
							break
						}
					}
				}
				mu.Unlock()

				if !c.Consent.OptIn && marketing == 0 {
					atomic.AddInt64(&metrics.SuppressedCustomers, 1)
				}

				if verbose {
					top := "-"
					if len(actions.Actions) > 0 {
						top = actions.Actions[0].Title
					}
					fmt.Printf("✓ %-14s | Segment: %-11s | Actions: %d | Top: %s\n",
						c.ID, c.Segment, len(actions.Actions), top)
				}
			}
		}()
	}

	// Send work
	for _, c := range customers {
		work <- c
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics, actionMix
}

func ingestCustomer(client *http.Client, baseURL, tenantID string, c Customer) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/customers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func fetchActions(client *http.Client, baseURL, tenantID, customerID string) (*ActionsResponse, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/customers/"+customerID+"/actions", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ActionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func scoreLeads(baseURL, tenantID string) (*ScoreResponse, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/leads/score", bytes.NewReader([]byte(`{}`)))
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

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, actionMix map[string]int64, leads *ScoreResponse, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 POPULATION STATISTICS\n")
	fmt.Printf("   Ingested:          %d\n", m.Ingested)
	fmt.Printf("   Actions Served:    %d\n", m.ActionsServed)
	fmt.Printf("   Total Actions:     %d\n", m.TotalActions)
	if m.ActionsServed > 0 {
		fmt.Printf("   Avg per Customer:  %.2f\n", float64(m.TotalActions)/float64(m.ActionsServed))
	}
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)

	if leads != nil && len(leads.Leads) > 0 {
		temperatures := make(map[string]int64)
		for _, l := range leads.Leads {
			temperatures[l.Temperature]++
		}
		fmt.Printf("\n🌡️  TEMPERATURE MIX\n")
		for _, tier := range []string{"HOT", "WARM", "COLD"} {
			pct := 100 * float64(temperatures[tier]) / float64(len(leads.Leads))
			fmt.Printf("   %-5s  %6d (%.2f%%)\n", tier, temperatures[tier], pct)
		}

		fmt.Printf("\n🏆 TOP LEADS\n")
		top := leads.Leads
		if len(top) > 5 {
			top = top[:5]
		}
		for i, l := range top {
			fmt.Printf("   %d. %-14s  score %.1f  (%s)\n", i+1, l.CustomerID, l.Score, l.Temperature)
		}
	}

	fmt.Printf("\n🎯 ACTION MIX\n")
	keys := make([]string, 0, len(actionMix))
	for k := range actionMix {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return actionMix[keys[i]] > actionMix[keys[j]] })
	for _, k := range keys {
		fmt.Printf("   %-22s %6d\n", k, actionMix[k])
	}

	fmt.Printf("\n🔒 CONSENT GATE\n")
	fmt.Printf("   Opted-out customers with zero marketing channels: %d\n", m.SuppressedCustomers)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.Ingested > 0 {
		fmt.Printf("   Avg Ingest:       %.2f ms\n", float64(m.IngestTimeMs)/float64(m.Ingested))
	}
	if m.ActionsServed > 0 {
		fmt.Printf("   Avg Actions:      %.2f ms\n", float64(m.ActionsTimeMs)/float64(m.ActionsServed))
		tps := float64(m.ActionsServed) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f customers/sec\n", tps)
	}

	fmt.Println()
}

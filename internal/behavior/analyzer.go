// Package behavior derives the Customer 360 profile: transaction
// analytics, engagement scoring and campaign response rollups.
package behavior

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-crm/kestrel/internal/domain"
)

// NotAvailable is the fallback for date-like fields with no data.
const NotAvailable = "N/A"

// Analyzer reduces a transaction history to summary statistics.
// Pure and total: any transaction list, in any order, yields the same
// well-defined result.
type Analyzer struct{}

// NewAnalyzer creates a new behavior analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze computes behavior analytics for a transaction list.
// An empty list degrades to zeros and "N/A" rather than an error.
func (a *Analyzer) Analyze(transactions []domain.Transaction) domain.BehaviorAnalytics {
	if len(transactions) == 0 {
		return domain.BehaviorAnalytics{
			DominantCategory:    NotAvailable,
			LastTransactionDate: NotAvailable,
		}
	}

	var total float64
	counts := make(map[string]int)
	earliest := transactions[0].Timestamp
	latest := transactions[0].Timestamp

	for _, tx := range transactions {
		total += tx.Amount
		counts[tx.Category]++
		if tx.Timestamp.Before(earliest) {
			earliest = tx.Timestamp
		}
		if tx.Timestamp.After(latest) {
			latest = tx.Timestamp
		}
	}

	return domain.BehaviorAnalytics{
		AverageTransactionAmount: total / float64(len(transactions)),
		TotalTransactionVolume:   total,
		DominantCategory:         dominantCategory(counts),
		TransactionFrequency:     frequency(len(transactions), earliest, latest),
		LastTransactionDate:      latest.UTC().Format("2006-01-02"),
	}
}

// dominantCategory picks the category with the highest count.
// Ties break to the lexicographically smallest name so the result does
// not depend on input ordering.
func dominantCategory(counts map[string]int) string {
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	best := ""
	bestCount := -1
	for _, c := range categories {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	if best == "" {
		return NotAvailable
	}
	return best
}

// frequency returns transactions per month over the spanned period.
// The denominator is floored at one month so single-day datasets do not
// report inflated frequency.
func frequency(count int, earliest, latest time.Time) float64 {
	spanDays := latest.Sub(earliest).Hours() / 24
	months := math.Max(1, spanDays/30)
	return float64(count) / months
}

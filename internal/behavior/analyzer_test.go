package behavior

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-crm/kestrel/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestAnalyzeEmptyHistory(t *testing.T) {
	a := NewAnalyzer()
	got := a.Analyze(nil)

	if got.AverageTransactionAmount != 0 || got.TotalTransactionVolume != 0 || got.TransactionFrequency != 0 {
		t.Errorf("numeric fields = %v/%v/%v, want zeros",
			got.AverageTransactionAmount, got.TotalTransactionVolume, got.TransactionFrequency)
	}
	if got.DominantCategory != NotAvailable {
		t.Errorf("DominantCategory = %q, want %q", got.DominantCategory, NotAvailable)
	}
	if got.LastTransactionDate != NotAvailable {
		t.Errorf("LastTransactionDate = %q, want %q", got.LastTransactionDate, NotAvailable)
	}
}

func TestAnalyzeSummaryStatistics(t *testing.T) {
	a := NewAnalyzer()
	transactions := []domain.Transaction{
		{ID: "tx-1", Amount: 100, Category: "groceries", Timestamp: testNow.AddDate(0, -2, 0)},
		{ID: "tx-2", Amount: 300, Category: "groceries", Timestamp: testNow.AddDate(0, -1, 0)},
		{ID: "tx-3", Amount: 200, Category: "travel", Timestamp: testNow.AddDate(0, 0, -5)},
	}

	got := a.Analyze(transactions)

	if got.AverageTransactionAmount != 200 {
		t.Errorf("AverageTransactionAmount = %v, want 200", got.AverageTransactionAmount)
	}
	if got.TotalTransactionVolume != 600 {
		t.Errorf("TotalTransactionVolume = %v, want 600", got.TotalTransactionVolume)
	}
	if got.DominantCategory != "groceries" {
		t.Errorf("DominantCategory = %q, want groceries", got.DominantCategory)
	}
	if got.LastTransactionDate != testNow.AddDate(0, 0, -5).Format("2006-01-02") {
		t.Errorf("LastTransactionDate = %q", got.LastTransactionDate)
	}
}

func TestAnalyzeDominantCategoryTieBreak(t *testing.T) {
	a := NewAnalyzer()

	// Equal counts in both orders must yield the same winner.
	forward := []domain.Transaction{
		{ID: "tx-1", Amount: 10, Category: "travel", Timestamp: testNow},
		{ID: "tx-2", Amount: 10, Category: "groceries", Timestamp: testNow},
	}
	reversed := []domain.Transaction{forward[1], forward[0]}

	if got := a.Analyze(forward).DominantCategory; got != "groceries" {
		t.Errorf("DominantCategory = %q, want groceries (lexicographic tie-break)", got)
	}
	if got := a.Analyze(reversed).DominantCategory; got != "groceries" {
		t.Errorf("DominantCategory order-dependent: got %q for reversed input", got)
	}
}

func TestAnalyzeFrequencyFloorsSpanAtOneMonth(t *testing.T) {
	a := NewAnalyzer()

	sameDay := []domain.Transaction{
		{ID: "tx-1", Amount: 10, Category: "retail", Timestamp: testNow},
		{ID: "tx-2", Amount: 20, Category: "retail", Timestamp: testNow.Add(2 * time.Hour)},
	}
	if got := a.Analyze(sameDay).TransactionFrequency; got != 2 {
		t.Errorf("same-day frequency = %v, want 2 per month", got)
	}

	spread := []domain.Transaction{
		{ID: "tx-1", Amount: 10, Category: "retail", Timestamp: testNow.AddDate(0, 0, -60)},
		{ID: "tx-2", Amount: 20, Category: "retail", Timestamp: testNow},
	}
	if got := a.Analyze(spread).TransactionFrequency; math.Abs(got-1) > 0.01 {
		t.Errorf("60-day spread frequency = %v, want ~1 per month", got)
	}
}

package estimate

import "testing"

func TestVarianceStable(t *testing.T) {
	e := NewHashEstimator()

	first := e.Variance("cust-1", "sla")
	second := e.Variance("cust-1", "sla")
	if first != second {
		t.Errorf("variance not stable: %v vs %v", first, second)
	}
}

func TestVarianceRange(t *testing.T) {
	e := NewHashEstimator()

	metrics := []string{"sla", "satisfaction", "tickets", "growth", "cross_sell"}
	for i := 0; i < 100; i++ {
		for _, m := range metrics {
			v := e.Variance(string(rune('a'+i%26))+"-cust", m)
			if v < 0 || v >= 1 {
				t.Fatalf("Variance(%d, %s) = %v, want within [0, 1)", i, m, v)
			}
		}
	}
}

func TestVarianceSeparatesInputs(t *testing.T) {
	e := NewHashEstimator()

	// The separator byte keeps ("ab", "c") and ("a", "bc") distinct.
	if e.Variance("ab", "c") == e.Variance("a", "bc") {
		t.Error("concatenation ambiguity: different pairs hashed identically")
	}
}

func TestFixed(t *testing.T) {
	if got := Fixed(0.25).Variance("any", "thing"); got != 0.25 {
		t.Errorf("Fixed.Variance = %v, want 0.25", got)
	}
}

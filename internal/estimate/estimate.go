// Package estimate provides the deterministic estimator backing the
// variable component of metric formulas. In production the interface
// would be implemented against a real analytics source; the default
// implementation hashes its inputs so the same customer always yields
// the same metrics.
package estimate

import (
	"hash/fnv"
)

// HashEstimator derives a stable variance in [0, 1) from an FNV-1a
// hash of customerID and metric name.
type HashEstimator struct{}

// NewHashEstimator creates the default deterministic estimator.
func NewHashEstimator() *HashEstimator {
	return &HashEstimator{}
}

// Variance returns a stable pseudo-variance for the pair.
func (e *HashEstimator) Variance(customerID string, metric string) float64 {
	h := fnv.New64a()
	h.Write([]byte(customerID))
	h.Write([]byte{0})
	h.Write([]byte(metric))
	return float64(h.Sum64()%10000) / 10000
}

// Fixed is an estimator that always returns the same value.
// Useful for boundary tests.
type Fixed float64

// Variance returns the fixed value regardless of inputs.
func (f Fixed) Variance(string, string) float64 {
	return float64(f)
}

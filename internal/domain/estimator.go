package domain

// Estimator supplies the variable component of metric formulas that a
// production deployment would back with a real data source. Variance
// must return a value in [0, 1) and be stable for a given
// (customerID, metric) pair so that scoring stays idempotent.
type Estimator interface {
	Variance(customerID string, metric string) float64
}

package crm

import (
	"github.com/opensource-crm/kestrel/internal/domain"
)

// maxPortfolioProducts is the product count at which a customer is
// considered fully penetrated for headroom purposes.
const maxPortfolioProducts = 5

// growthMetrics derives expansion potential. The segment base carries
// most of the signal; headroom from unheld products and estimator
// variance fill in the rest.
func (a *Aggregator) growthMetrics(c *domain.Customer) domain.GrowthMetrics {
	base, ok := a.cfg.SegmentGrowthBase[c.Segment]
	if !ok {
		base = 20
	}

	products := len(c.Products)
	headroom := float64(maxPortfolioProducts-products) * 4
	if headroom < 0 {
		headroom = 0
	}

	return domain.GrowthMetrics{
		CrossSellConversion:  clamp(base+a.est.Variance(c.ID, "cross_sell")*10, 0, 100),
		UpsellConversion:     clamp(base*0.9+a.est.Variance(c.ID, "upsell")*10, 0, 100),
		ProductsPerCustomer:  products,
		GrowthPotentialScore: clamp(base+headroom+a.est.Variance(c.ID, "growth")*8, 0, 100),
	}
}

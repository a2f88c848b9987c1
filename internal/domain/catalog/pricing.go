package catalog

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PricingConfig holds the pricing multipliers. Margin and VAT are compounded,
// not added: price = cost * (1 + margin) * (1 + vat).
type PricingConfig struct {
	MarginPercent decimal.Decimal
	VATPercent    decimal.Decimal
}

// DefaultPricingConfig returns the house pricing rules: 40% margin, 9% VAT.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		MarginPercent: decimal.NewFromInt(40),
		VATPercent:    decimal.NewFromInt(9),
	}
}

// Pricer derives sale prices from ingredient costs. All configuration is
// supplied at construction; Quote is a pure function of its input.
type Pricer struct {
	marginFactor decimal.Decimal
	vatFactor    decimal.Decimal
}

// NewPricer builds a Pricer from the given config.
func NewPricer(cfg PricingConfig) *Pricer {
	one := decimal.NewFromInt(1)
	return &Pricer{
		marginFactor: one.Add(cfg.MarginPercent.Div(hundred)),
		vatFactor:    one.Add(cfg.VATPercent.Div(hundred)),
	}
}

// Quote returns the VAT-inclusive sale price for a pizza, rounded up to the
// cent. A pizza with no ingredients quotes at zero.
func (pr *Pricer) Quote(p Pizza) decimal.Decimal {
	cost := p.BaseCost()
	if cost.IsZero() {
		return decimal.Zero
	}
	return cost.Mul(pr.marginFactor).Mul(pr.vatFactor).RoundCeil(2)
}

// CatalogPrice returns the menu price: the quote rounded up to the next
// 10-cent boundary (6.56 -> 6.60). Used when publishing the catalog; carts
// freeze the exact Quote instead.
func (pr *Pricer) CatalogPrice(p Pizza) decimal.Decimal {
	return pr.Quote(p).RoundCeil(1)
}

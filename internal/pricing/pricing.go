package pricing

import (
	"errors"

	"tixhold-backend/internal/models"
)

var (
	ErrUnknownPricingMode = errors.New("Unknown pricing mode")
	ErrInvalidPricingSpec = errors.New("Pricing fields do not match pricing mode")
)

// Spec is the pricing rule attached to an allocation. The payload fields are
// mutually exclusive per mode; Validate enforces that at construction time
// so EffectivePrice never has to.
type Spec struct {
	Mode             models.PricingMode
	CustomPriceCents *int64
	DiscountPercent  *int
}

// Validate checks the mode/payload pairing: FIXED requires a non-negative
// custom price, PERCENTAGE_DISCOUNT requires a 0-100 percentage, and every
// mode forbids the fields it does not use.
func (s Spec) Validate() error {
	switch s.Mode {
	case models.PricingOriginal, models.PricingFree:
		if s.CustomPriceCents != nil || s.DiscountPercent != nil {
			return ErrInvalidPricingSpec
		}
	case models.PricingFixed:
		if s.CustomPriceCents == nil || *s.CustomPriceCents < 0 || s.DiscountPercent != nil {
			return ErrInvalidPricingSpec
		}
	case models.PricingPercentageDiscount:
		if s.DiscountPercent == nil || *s.DiscountPercent < 0 || *s.DiscountPercent > 100 || s.CustomPriceCents != nil {
			return ErrInvalidPricingSpec
		}
	default:
		return ErrUnknownPricingMode
	}
	return nil
}

// EffectivePrice computes the unit price in cents for a validated spec.
// Pure: both the storefront display path and the redemption coordinator call
// this, so the shown price and the charged price cannot diverge.
func EffectivePrice(listPriceCents int64, mode models.PricingMode, customPriceCents *int64, discountPercent *int) int64 {
	switch mode {
	case models.PricingFixed:
		if customPriceCents == nil {
			return listPriceCents
		}
		return *customPriceCents
	case models.PricingPercentageDiscount:
		if discountPercent == nil {
			return listPriceCents
		}
		// Integer half-up rounding of listPrice * pct / 100.
		discount := (listPriceCents*int64(*discountPercent) + 50) / 100
		price := listPriceCents - discount
		if price < 0 {
			price = 0
		}
		return price
	case models.PricingFree:
		return 0
	default:
		return listPriceCents
	}
}

// EffectivePriceFor prices an allocation against a catalog list price.
func EffectivePriceFor(a *models.Allocation, listPriceCents int64) int64 {
	return EffectivePrice(listPriceCents, a.PricingMode, a.CustomPriceCents, a.DiscountPercent)
}

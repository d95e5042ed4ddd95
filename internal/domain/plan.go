package domain

import "time"

// Plan is a membership plan. Only the pricing fields matter to the engine;
// full plan CRUD lives with the resource handlers.
type Plan struct {
	ID           string
	Name         string
	PriceCents   int64
	DurationDays int
	CreatedAt    time.Time
}

// AmountWithinTolerance reports whether a payment amount is acceptable for
// this plan. The band is 10% to 110% of the plan price, carried over from
// the existing billing rules.
// TODO: confirm the 10%-110% band with product; the rationale is undocumented.
func (p Plan) AmountWithinTolerance(amountCents int64) bool {
	if p.PriceCents <= 0 {
		return false
	}
	low := p.PriceCents / 10
	high := p.PriceCents + p.PriceCents/10
	return amountCents >= low && amountCents <= high
}

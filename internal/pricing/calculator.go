package pricing

import (
	"context"

	"github.com/avstrong/staycal/internal/calendar"
)

type ruleProvider interface {
	Rules(ctx context.Context) []Rule
}

type Stay struct {
	BasePrice float64       `json:"basePrice"`
	Checkin   calendar.Date `json:"checkin"`
	Checkout  calendar.Date `json:"checkout"`
}

// Valid reports whether the stay has a base price and at least one night.
func (s Stay) Valid() bool {
	return s.BasePrice != 0 && !s.Checkin.IsZero() && !s.Checkout.IsZero() && s.Checkin.Before(s.Checkout)
}

type Night struct {
	Date     calendar.Date `json:"date"`
	Price    float64       `json:"price"`
	RuleID   int64         `json:"adjustmentId,omitempty"`
	RuleName string        `json:"adjustmentName,omitempty"`
}

type Quote struct {
	Checkin  calendar.Date `json:"checkin"`
	Checkout calendar.Date `json:"checkout"`
	Nights   []Night       `json:"nights"`
	Total    float64       `json:"total"`
}

type Calculator struct {
	rules ruleProvider
}

func NewCalculator(rules ruleProvider) *Calculator {
	return &Calculator{rules: rules}
}

// PriceFunc returns a day pricer bound to one rules snapshot.
func (c *Calculator) PriceFunc(ctx context.Context, base float64) calendar.PriceFunc {
	if base == 0 {
		return nil
	}

	rules := c.rules.Rules(ctx)

	return func(d calendar.Date) (float64, bool) {
		return Resolve(d, base, rules), true
	}
}

// Total sums nightly prices over [checkin, checkout). Invalid stays cost 0.
func (c *Calculator) Total(ctx context.Context, stay Stay) float64 {
	return c.Quote(ctx, stay).Total
}

func (c *Calculator) Quote(ctx context.Context, stay Stay) Quote {
	q := Quote{Checkin: stay.Checkin, Checkout: stay.Checkout, Nights: []Night{}}
	if !stay.Valid() {
		return q
	}

	rules := c.rules.Rules(ctx)
	q.Nights = make([]Night, 0, stay.Checkin.DaysUntil(stay.Checkout))

	for d := stay.Checkin; d.Before(stay.Checkout); d = d.AddDays(1) {
		night := Night{Date: d, Price: stay.BasePrice}

		if r, ok := Match(d, rules); ok {
			night.Price = r.Apply(stay.BasePrice)
			night.RuleID = r.ID
			night.RuleName = r.Name
		}

		q.Nights = append(q.Nights, night)
		q.Total += night.Price
	}

	return q
}

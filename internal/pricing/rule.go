package pricing

import (
	"github.com/avstrong/staycal/internal/calendar"
)

type AdjustmentType string

const (
	Percentage  AdjustmentType = "PERCENTAGE"
	FixedAmount AdjustmentType = "FIXED_AMOUNT"
)

// Rule is a date-bounded price modifier. Both StartDate and EndDate are inclusive.
type Rule struct {
	ID        int64          `json:"adjustmentId"`
	Name      string         `json:"name"`
	StartDate calendar.Date  `json:"startDate"`
	EndDate   calendar.Date  `json:"endDate"`
	Type      AdjustmentType `json:"adjustmentType"`
	Value     float64        `json:"adjustmentValue"`
}

func (r Rule) Covers(d calendar.Date) bool {
	return !d.Before(r.StartDate) && !d.After(r.EndDate)
}

// Apply overlays the rule on a nightly base price. Unknown types leave the price untouched.
// The sign of Value is not checked, so a rule may push the price below zero.
func (r Rule) Apply(base float64) float64 {
	switch r.Type {
	case Percentage:
		return base * (1 + r.Value/100) //nolint:gomnd
	case FixedAmount:
		return base + r.Value
	default:
		return base
	}
}

// Match returns the first rule in list order that covers d.
func Match(d calendar.Date, rules []Rule) (Rule, bool) {
	for _, r := range rules {
		if r.Covers(d) {
			return r, true
		}
	}

	return Rule{}, false
}

// Resolve prices one night. A zero base price or no matching rule returns base unchanged.
func Resolve(d calendar.Date, base float64, rules []Rule) float64 {
	if base == 0 {
		return base
	}

	r, ok := Match(d, rules)
	if !ok {
		return base
	}

	return r.Apply(base)
}

package calendar

import (
	"fmt"
	"strings"
)

// BookingInterval occupies [Checkin, Checkout). The checkout day stays free for the next arrival.
type BookingInterval struct {
	Checkin  Date `json:"checkin_date"`
	Checkout Date `json:"checkout_date"`
}

func (b BookingInterval) Contains(d Date) bool {
	return !d.Before(b.Checkin) && d.Before(b.Checkout)
}

type PastBoundary int

const (
	// PastBeforeToday disables days strictly before today; today stays selectable.
	PastBeforeToday PastBoundary = iota
	// PastThroughToday disables today as well.
	PastThroughToday
)

func ParsePastBoundary(s string) (PastBoundary, error) {
	switch strings.ToLower(s) {
	case "", "exclusive", "before_today":
		return PastBeforeToday, nil
	case "inclusive", "through_today":
		return PastThroughToday, nil
	default:
		return 0, fmt.Errorf("unknown past boundary %q", s)
	}
}

// IsPast is the one place that decides whether a day lies in the past.
func IsPast(d, today Date, boundary PastBoundary) bool {
	if boundary == PastThroughToday {
		return !d.After(today)
	}

	return d.Before(today)
}

type DayState string

const (
	DayPast      DayState = "past"
	DayBooked    DayState = "booked"
	DayAvailable DayState = "available"
	DayCheckin   DayState = "checkin"
	DayCheckout  DayState = "checkout"
	DayInRange   DayState = "in-range"
)

// Disabled reports whether the state forbids selection and pricing.
func (s DayState) Disabled() bool {
	return s == DayPast || s == DayBooked
}

type Classifier struct {
	Today    Date
	Boundary PastBoundary
	Booked   []BookingInterval
}

func (c Classifier) IsPast(d Date) bool {
	return IsPast(d, c.Today, c.Boundary)
}

func (c Classifier) IsBooked(d Date) bool {
	for _, b := range c.Booked {
		if b.Contains(d) {
			return true
		}
	}

	return false
}

func (c Classifier) IsDisabled(d Date) bool {
	return c.IsPast(d) || c.IsBooked(d)
}

// Classify decides the rendered state of d under the current selection.
func (c Classifier) Classify(d Date, sel *Selection) DayState {
	if c.IsPast(d) {
		return DayPast
	}

	if c.IsBooked(d) {
		return DayBooked
	}

	if sel == nil {
		return DayAvailable
	}

	switch {
	case !sel.checkin.IsZero() && d == sel.checkin:
		return DayCheckin
	case !sel.checkout.IsZero() && d == sel.checkout:
		return DayCheckout
	}

	if end := sel.rangeEnd(); !end.IsZero() && d.After(sel.checkin) && d.Before(end) {
		return DayInRange
	}

	return DayAvailable
}

// RangeBookable reports whether every night in [checkin, checkout) is free and not past.
func (c Classifier) RangeBookable(checkin, checkout Date) bool {
	if !checkin.Before(checkout) {
		return false
	}

	for d := checkin; d.Before(checkout); d = d.AddDays(1) {
		if c.IsDisabled(d) {
			return false
		}
	}

	return true
}

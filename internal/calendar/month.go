package calendar

import (
	"fmt"
	"time"
)

type Day struct {
	Date  Date     `json:"date"`
	State DayState `json:"state"`
	Price *float64 `json:"price,omitempty"`
}

// PriceFunc prices an enabled day. Returning false leaves the day without a price.
type PriceFunc func(d Date) (float64, bool)

type YearMonth struct {
	Year  int
	Month time.Month
}

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse month %q: %w", s, ErrInvalidDate)
	}

	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) First() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// Month lays out every day of ym with its state. Disabled days never get a price.
func Month(ym YearMonth, c Classifier, sel *Selection, price PriceFunc) []Day {
	first := ym.First()
	next := first.In(time.UTC).AddDate(0, 1, 0)
	days := make([]Day, 0, 31) //nolint:gomnd

	for d := first; d.Before(DateOf(next)); d = d.AddDays(1) {
		day := Day{Date: d, State: c.Classify(d, sel)}

		if !day.State.Disabled() && price != nil {
			if p, ok := price(d); ok {
				day.Price = &p
			}
		}

		days = append(days, day)
	}

	return days
}

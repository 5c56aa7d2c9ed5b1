package hotelapi

import (
	"fmt"
	"time"

	"github.com/avstrong/staycal/internal/calendar"
)

// scheduleEntry is one booking of GET /rooms/{roomId}/schedule. Other fields are ignored.
type scheduleEntry struct {
	CheckinDate  string `json:"checkinDate"`
	CheckoutDate string `json:"checkoutDate"`
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDatetime reads ISO datetimes; values without an offset are taken as wall time in loc.
func parseDatetime(s string, loc *time.Location) (calendar.Date, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return calendar.DateOf(t.In(loc)), nil
		}
	}

	return calendar.Date{}, fmt.Errorf("parse datetime %q: %w", s, calendar.ErrInvalidDate)
}

func (e scheduleEntry) interval(loc *time.Location) (calendar.BookingInterval, error) {
	checkin, err := parseDatetime(e.CheckinDate, loc)
	if err != nil {
		return calendar.BookingInterval{}, fmt.Errorf("checkinDate: %w", err)
	}

	checkout, err := parseDatetime(e.CheckoutDate, loc)
	if err != nil {
		return calendar.BookingInterval{}, fmt.Errorf("checkoutDate: %w", err)
	}

	return calendar.BookingInterval{Checkin: checkin, Checkout: checkout}, nil
}

package stay

import (
	"context"
	"time"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/pricing"
)

// Session is one range-picker instance bound to a room.
// Generation grows on every room change; schedule results from an older generation are dropped.
type Session struct {
	ID         string
	RoomID     string
	BasePrice  float64
	Selection  calendar.Selection
	Booked     []calendar.BookingInterval
	Loading    bool
	Degraded   bool
	Generation int
	CreatedAt  time.Time
	UpdatedAt  time.Time

	cancel context.CancelFunc
}

func (s *Session) stopFetch() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

type OpenInput struct {
	RoomID    string  `json:"roomId"`
	BasePrice float64 `json:"basePrice"`
}

type QuoteInput struct {
	RoomID    string        `json:"roomId,omitempty"`
	BasePrice float64       `json:"basePrice"`
	Checkin   calendar.Date `json:"checkin"`
	Checkout  calendar.Date `json:"checkout"`
}

type QuoteView struct {
	pricing.Quote
	Bookable *bool `json:"bookable,omitempty"`
	Degraded bool  `json:"degraded,omitempty"`
}

type MonthView struct {
	RoomID   string         `json:"roomId"`
	Month    string         `json:"month"`
	Days     []calendar.Day `json:"days"`
	Degraded bool           `json:"degraded,omitempty"`
}

type SessionView struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"roomId"`
	BasePrice float64        `json:"basePrice"`
	Phase     calendar.Phase `json:"phase"`
	Checkin   calendar.Date  `json:"checkin"`
	Checkout  calendar.Date  `json:"checkout"`
	Preview   calendar.Date  `json:"preview"`
	Loading   bool           `json:"loading"`
	Degraded  bool           `json:"degraded,omitempty"`
	Days      []calendar.Day `json:"days,omitempty"`
}

// Confirmation is what the host application receives once a range is committed.
type Confirmation struct {
	calendar.Range
	Total    float64 `json:"total"`
	Bookable bool    `json:"bookable"`
	Degraded bool    `json:"degraded,omitempty"`
}

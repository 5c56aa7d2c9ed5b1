package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/pricing"
)

// Upstream stands in for the hotel API when running offline.
type Upstream struct {
	mu        sync.RWMutex
	rules     []pricing.Rule
	schedules map[string][]calendar.BookingInterval
}

func NewUpstream() *Upstream {
	//nolint:exhaustruct
	return &Upstream{
		schedules: make(map[string][]calendar.BookingInterval),
	}
}

func (u *Upstream) PutPriceAdjustments(_ context.Context, rules []pricing.Rule) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rules = append(u.rules, rules...)

	return nil
}

func (u *Upstream) PutRoomSchedule(_ context.Context, roomID string, booked []calendar.BookingInterval) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.schedules[roomID] = append(u.schedules[roomID], booked...)

	return nil
}

func (u *Upstream) PriceAdjustments(_ context.Context) ([]pricing.Rule, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return append([]pricing.Rule(nil), u.rules...), nil
}

func (u *Upstream) RoomSchedule(_ context.Context, roomID string) ([]calendar.BookingInterval, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	booked, ok := u.schedules[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
	}

	return append([]calendar.BookingInterval(nil), booked...), nil
}

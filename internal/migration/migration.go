package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/logger"
	"github.com/avstrong/staycal/internal/pricing"
)

type storage interface {
	PutPriceAdjustments(ctx context.Context, rules []pricing.Rule) error
	PutRoomSchedule(ctx context.Context, roomID string, booked []calendar.BookingInterval) error
}

// Up seeds an offline upstream with demo rooms around today and a year-end rule set.
func Up(ctx context.Context, l *logger.Logger, storage storage, today calendar.Date) error {
	year := today.Year
	if today.Month == time.December && today.Day > 26 { //nolint:gomnd
		year++
	}

	rules := []pricing.Rule{
		{
			ID:        1,
			Name:      "Christmas",
			StartDate: calendar.NewDate(year, time.December, 24),
			EndDate:   calendar.NewDate(year, time.December, 26),
			Type:      pricing.Percentage,
			Value:     20, //nolint:gomnd
		},
		{
			ID:        2,
			Name:      "New Year's Eve",
			StartDate: calendar.NewDate(year, time.December, 31),
			EndDate:   calendar.NewDate(year, time.December, 31),
			Type:      pricing.FixedAmount,
			Value:     500000, //nolint:gomnd
		},
	}

	if err := storage.PutPriceAdjustments(ctx, rules); err != nil {
		return fmt.Errorf("put price adjustments: %w", err)
	}

	schedules := map[string][]calendar.BookingInterval{
		"101": {
			{Checkin: today.AddDays(2), Checkout: today.AddDays(5)},   //nolint:gomnd
			{Checkin: today.AddDays(5), Checkout: today.AddDays(7)},   //nolint:gomnd
			{Checkin: today.AddDays(12), Checkout: today.AddDays(13)}, //nolint:gomnd
		},
		"102": {},
		"201": {
			{Checkin: today.AddDays(-3), Checkout: today.AddDays(1)}, //nolint:gomnd
		},
	}

	for roomID, booked := range schedules {
		if err := storage.PutRoomSchedule(ctx, roomID, booked); err != nil {
			return fmt.Errorf("put schedule of room %v: %w", roomID, err)
		}
	}

	l.LogInfo("Offline upstream seeded with %d rules and %d rooms", len(rules), len(schedules))

	return nil
}

package stay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/idgen/simple"
	"github.com/avstrong/staycal/internal/logger"
	"github.com/avstrong/staycal/internal/pricing"
	"github.com/avstrong/staycal/internal/stay"
	"github.com/avstrong/staycal/internal/storage/memory"
)

func date(year int, month time.Month, day int) calendar.Date {
	return calendar.NewDate(year, month, day)
}

// blockingSchedules holds every RoomSchedule call until release is closed or the caller gives up.
type blockingSchedules struct {
	mu       sync.Mutex
	started  chan string
	release  chan struct{}
	booked   map[string][]calendar.BookingInterval
	err      error
	canceled int
}

func (b *blockingSchedules) RoomSchedule(ctx context.Context, roomID string) ([]calendar.BookingInterval, error) {
	if b.started != nil {
		b.started <- roomID
	}

	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			b.mu.Lock()
			b.canceled++
			b.mu.Unlock()

			return nil, ctx.Err()
		}
	}

	if b.err != nil {
		return nil, b.err
	}

	return b.booked[roomID], nil
}

type recordingIDs struct {
	gen  *simple.Generator
	mu   sync.Mutex
	last string
}

func (r *recordingIDs) GetID(ctx context.Context) (string, error) {
	id, err := r.gen.GetID(ctx)

	r.mu.Lock()
	r.last = id
	r.mu.Unlock()

	return id, err
}

func (r *recordingIDs) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.last
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fixture struct {
	manager   *stay.Manager
	clock     *clock
	ids       *recordingIDs
	db        *memory.DB
	upstream  *memory.Upstream
	schedules *blockingSchedules
}

var christmas = pricing.Rule{
	ID:        1,
	Name:      "Christmas",
	StartDate: date(2025, 12, 24),
	EndDate:   date(2025, 12, 26),
	Type:      pricing.Percentage,
	Value:     20,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	l := logger.NewNop()
	db := memory.New(memory.Config{L: l})
	upstream := memory.NewUpstream()

	require.NoError(t, upstream.PutPriceAdjustments(ctx, []pricing.Rule{christmas}))

	schedules := &blockingSchedules{booked: map[string][]calendar.BookingInterval{
		"101": {{Checkin: date(2025, 12, 20), Checkout: date(2025, 12, 22)}},
	}}

	clk := &clock{now: time.Date(2025, 12, 5, 9, 0, 0, 0, time.UTC)}
	conf := stay.Conf{
		Location:             time.UTC,
		PickerBoundary:       calendar.PastBeforeToday,
		AvailabilityBoundary: calendar.PastThroughToday,
		Now:                  clk.Now,
	}

	cache := pricing.NewRuleCache(l, upstream, db)
	ids := &recordingIDs{gen: simple.New()}

	return &fixture{
		manager:   stay.New(l, conf, schedules, cache, db, ids),
		clock:     clk,
		ids:       ids,
		db:        db,
		upstream:  upstream,
		schedules: schedules,
	}
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)

	view, err := f.manager.Calendar(context.Background(), "101", "2025-12", 1000)
	require.NoError(t, err)
	require.Len(t, view.Days, 31)
	assert.False(t, view.Degraded)

	// today is disabled on the availability calendar
	assert.Equal(t, calendar.DayPast, view.Days[4].State)
	assert.Nil(t, view.Days[4].Price)
	assert.Equal(t, calendar.DayAvailable, view.Days[5].State)
	assert.InDelta(t, 1000, *view.Days[5].Price, 0.0001)
	assert.Equal(t, calendar.DayBooked, view.Days[19].State)
	assert.Equal(t, calendar.DayBooked, view.Days[20].State)
	assert.Equal(t, calendar.DayAvailable, view.Days[21].State)
	assert.InDelta(t, 1200, *view.Days[24].Price, 0.0001)
}

func TestCalendarInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Calendar(context.Background(), "", "December", 0)
	inputErr := stay.IsInputError(err)
	require.NotNil(t, inputErr)
	assert.Contains(t, inputErr.Fields(), "roomId")
	assert.Contains(t, inputErr.Fields(), "month")
}

func TestCalendarFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.schedules.err = errors.New("schedule service down")

	view, err := f.manager.Calendar(context.Background(), "101", "2025-12", 1000)
	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Equal(t, calendar.DayAvailable, view.Days[19].State)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.manager.Quote(ctx, stay.QuoteInput{
		BasePrice: 1000000,
		Checkin:   date(2025, 12, 24),
		Checkout:  date(2025, 12, 27),
	})
	require.NoError(t, err)
	assert.InDelta(t, 3600000, q.Total, 0.0001)
	assert.Len(t, q.Nights, 3)
	assert.Nil(t, q.Bookable)

	q, err = f.manager.Quote(ctx, stay.QuoteInput{
		RoomID:    "101",
		BasePrice: 1000000,
		Checkin:   date(2025, 12, 21),
		Checkout:  date(2025, 12, 23),
	})
	require.NoError(t, err)
	require.NotNil(t, q.Bookable)
	assert.False(t, *q.Bookable)

	q, err = f.manager.Quote(ctx, stay.QuoteInput{
		BasePrice: 1000000,
		Checkin:   date(2025, 12, 27),
		Checkout:  date(2025, 12, 24),
	})
	require.NoError(t, err)
	assert.Zero(t, q.Total)
	assert.Empty(t, q.Nights)

	_, err = f.manager.Quote(ctx, stay.QuoteInput{
		BasePrice: -1,
		Checkin:   date(2025, 12, 24),
		Checkout:  date(2025, 12, 27),
	})
	inputErr := stay.IsInputError(err)
	require.NotNil(t, inputErr)
	assert.Contains(t, inputErr.Fields(), "basePrice")
}

func TestSelectionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "101", BasePrice: 1000000})
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseEmpty, view.Phase)
	assert.False(t, view.Loading)

	id := view.ID

	// today is selectable in the picker
	view, err = f.manager.Click(ctx, id, date(2025, 12, 5))
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseHasCheckin, view.Phase)

	// booked day is ignored
	view, err = f.manager.Click(ctx, id, date(2025, 12, 20))
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseHasCheckin, view.Phase)

	view, err = f.manager.Click(ctx, id, date(2025, 12, 24))
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseHasRange, view.Phase)

	view, err = f.manager.Click(ctx, id, date(2025, 12, 23))
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseHasCheckin, view.Phase)
	assert.Equal(t, date(2025, 12, 23), view.Checkin)

	view, err = f.manager.Hover(ctx, id, date(2025, 12, 26))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 12, 26), view.Preview)

	view, err = f.manager.Get(ctx, id, "2025-12")
	require.NoError(t, err)
	assert.Equal(t, calendar.DayInRange, view.Days[24].State)

	view, err = f.manager.Leave(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Preview.IsZero())

	_, err = f.manager.Confirm(ctx, id)
	assert.ErrorIs(t, err, calendar.ErrSelectionIncomplete)

	_, err = f.manager.Click(ctx, id, date(2025, 12, 26))
	require.NoError(t, err)

	conf, err := f.manager.Confirm(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 12, 23), conf.Checkin)
	assert.Equal(t, date(2025, 12, 26), conf.Checkout)
	assert.InDelta(t, 1000000+1200000+1200000, conf.Total, 0.0001)
	assert.True(t, conf.Bookable)

	require.NoError(t, f.manager.Close(ctx, id))

	_, err = f.manager.Get(ctx, id, "")
	assert.ErrorIs(t, err, stay.ErrRecordNotFound)
	assert.ErrorIs(t, f.manager.Close(ctx, id), stay.ErrRecordNotFound)
}

func TestClickSequenceRestarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "102", BasePrice: 100})
	require.NoError(t, err)

	for _, d := range []calendar.Date{date(2025, 12, 10), date(2025, 12, 15), date(2025, 12, 5)} {
		view, err = f.manager.Click(ctx, view.ID, d)
		require.NoError(t, err)
	}

	assert.Equal(t, calendar.PhaseHasCheckin, view.Phase)
	assert.Equal(t, date(2025, 12, 5), view.Checkin)
	assert.True(t, view.Checkout.IsZero())
}

func TestChangeRoomResetsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "102", BasePrice: 100})
	require.NoError(t, err)

	_, err = f.manager.Click(ctx, view.ID, date(2025, 12, 20))
	require.NoError(t, err)

	view, err = f.manager.ChangeRoom(ctx, view.ID, "101")
	require.NoError(t, err)
	assert.Equal(t, "101", view.RoomID)
	assert.Equal(t, calendar.PhaseEmpty, view.Phase)

	// 20th is booked in the new room
	view, err = f.manager.Click(ctx, view.ID, date(2025, 12, 20))
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseEmpty, view.Phase)

	_, err = f.manager.ChangeRoom(ctx, view.ID, "")
	assert.NotNil(t, stay.IsInputError(err))
}

func TestCloseDuringScheduleLoad(t *testing.T) {
	f := newFixture(t)
	f.schedules.started = make(chan string, 1)
	f.schedules.release = make(chan struct{})

	errCh := make(chan error, 1)

	go func() {
		_, err := f.manager.Open(context.Background(), stay.OpenInput{RoomID: "101", BasePrice: 100})
		errCh <- err
	}()

	<-f.schedules.started
	require.Equal(t, 1, f.db.SessionsCount())

	require.NoError(t, f.manager.Close(context.Background(), f.ids.Last()))

	err := <-errCh
	assert.ErrorIs(t, err, stay.ErrRecordNotFound)
	assert.Equal(t, 0, f.db.SessionsCount())
	assert.Equal(t, 1, f.schedules.canceled)
}

func TestStaleRoomScheduleDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "102", BasePrice: 100})
	require.NoError(t, err)

	f.schedules.started = make(chan string, 2)
	f.schedules.release = make(chan struct{})

	firstDone := make(chan error, 1)

	go func() {
		_, err := f.manager.ChangeRoom(ctx, view.ID, "101")
		firstDone <- err
	}()

	require.Equal(t, "101", <-f.schedules.started)

	secondDone := make(chan *stay.SessionView, 1)

	go func() {
		v, err := f.manager.ChangeRoom(ctx, view.ID, "102")
		assert.NoError(t, err)
		secondDone <- v
	}()

	require.Equal(t, "102", <-f.schedules.started)

	// the first switch was abandoned by the second one and its result dropped
	assert.NoError(t, <-firstDone)

	close(f.schedules.release)

	v := <-secondDone
	assert.Equal(t, "102", v.RoomID)
	assert.False(t, v.Loading)

	v, err = f.manager.Click(ctx, view.ID, date(2025, 12, 20))
	require.NoError(t, err)
	assert.Equal(t, calendar.PhaseHasCheckin, v.Phase)
}

func TestRefreshRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stayInput := stay.QuoteInput{BasePrice: 100, Checkin: date(2025, 12, 31), Checkout: date(2026, 1, 1)}

	q, err := f.manager.Quote(ctx, stayInput)
	require.NoError(t, err)
	assert.InDelta(t, 100, q.Total, 0.0001)

	newYear := pricing.Rule{ID: 2, StartDate: date(2025, 12, 31), EndDate: date(2025, 12, 31), Type: pricing.FixedAmount, Value: 50}
	require.NoError(t, f.upstream.PutPriceAdjustments(ctx, []pricing.Rule{newYear}))

	q, err = f.manager.Quote(ctx, stayInput)
	require.NoError(t, err)
	assert.InDelta(t, 100, q.Total, 0.0001)

	require.NoError(t, f.manager.RefreshRules(ctx))

	q, err = f.manager.Quote(ctx, stayInput)
	require.NoError(t, err)
	assert.InDelta(t, 150, q.Total, 0.0001)
}

func TestOpenInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Open(context.Background(), stay.OpenInput{BasePrice: -1})
	inputErr := stay.IsInputError(err)
	require.NotNil(t, inputErr)
	assert.Len(t, inputErr.Fields(), 2)

	_, err = f.manager.Get(context.Background(), "missing", "")
	assert.ErrorIs(t, err, stay.ErrRecordNotFound)

	_, err = f.manager.Get(context.Background(), "missing", "12/2025")
	assert.NotNil(t, stay.IsInputError(err))
}

func TestOpenWithCancelledRequestLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	f.schedules.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "101", BasePrice: 100})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.db.SessionsCount())

	_, err = f.manager.Get(context.Background(), f.ids.Last(), "")
	assert.ErrorIs(t, err, stay.ErrRecordNotFound)
}

func TestInterruptedRoomChangeIsDegraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "102", BasePrice: 100})
	require.NoError(t, err)
	require.False(t, view.Degraded)

	f.schedules.release = make(chan struct{})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = f.manager.ChangeRoom(cancelled, view.ID, "101")
	assert.ErrorIs(t, err, context.Canceled)

	view, err = f.manager.Get(ctx, view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "101", view.RoomID)
	assert.False(t, view.Loading)
	assert.True(t, view.Degraded)

	// bookings of room 101 are unknown, so the 20th is clickable but the result is flagged
	_, err = f.manager.Click(ctx, view.ID, date(2025, 12, 20))
	require.NoError(t, err)
	_, err = f.manager.Click(ctx, view.ID, date(2025, 12, 23))
	require.NoError(t, err)

	confirmation, err := f.manager.Confirm(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, confirmation.Degraded)
}

func TestEvictIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "101", BasePrice: 100})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)

	active, err := f.manager.Open(ctx, stay.OpenInput{RoomID: "102", BasePrice: 100})
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)

	evicted, err := f.manager.EvictIdle(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = f.manager.Get(ctx, stale.ID, "")
	assert.ErrorIs(t, err, stay.ErrRecordNotFound)

	_, err = f.manager.Click(ctx, active.ID, date(2025, 12, 24))
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)

	// the click refreshed the session
	evicted, err = f.manager.EvictIdle(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Open(context.Background(), stay.OpenInput{RoomID: "101", BasePrice: 100})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		f.manager.RunJanitor(ctx, 30*time.Minute, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.db.SessionsCount() == 0 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

package stay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/logger"
	"github.com/avstrong/staycal/internal/pricing"
)

type idGenerator interface {
	GetID(ctx context.Context) (string, error)
}

type scheduleSource interface {
	RoomSchedule(ctx context.Context, roomID string) ([]calendar.BookingInterval, error)
}

type ruleCache interface {
	Rules(ctx context.Context) []pricing.Rule
	Invalidate(ctx context.Context) error
}

type sessionStore interface {
	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, id string, fn func(s *Session) error) (*Session, error)
	DeleteSession(ctx context.Context, id string) (*Session, error)
	DeleteIdleSessions(ctx context.Context, before time.Time) ([]*Session, error)
}

type Conf struct {
	Location *time.Location
	// PickerBoundary applies to selection sessions, AvailabilityBoundary to the month calendar.
	PickerBoundary       calendar.PastBoundary
	AvailabilityBoundary calendar.PastBoundary
	Now                  func() time.Time
}

type Manager struct {
	l           *logger.Logger
	conf        Conf
	schedules   scheduleSource
	rules       ruleCache
	calculator  *pricing.Calculator
	sessions    sessionStore
	idGenerator idGenerator
}

func New(
	l *logger.Logger,
	conf Conf,
	schedules scheduleSource,
	rules ruleCache,
	sessions sessionStore,
	idGenerator idGenerator,
) *Manager {
	if conf.Location == nil {
		conf.Location = time.Local
	}

	if conf.Now == nil {
		conf.Now = time.Now
	}

	return &Manager{
		l:           l,
		conf:        conf,
		schedules:   schedules,
		rules:       rules,
		calculator:  pricing.NewCalculator(rules),
		sessions:    sessions,
		idGenerator: idGenerator,
	}
}

func (m *Manager) today() calendar.Date {
	return calendar.DateOf(m.conf.Now().In(m.conf.Location))
}

// fetchSchedule fails open: on error the room is treated as having no bookings.
func (m *Manager) fetchSchedule(ctx context.Context, roomID string) ([]calendar.BookingInterval, bool, error) {
	booked, err := m.schedules.RoomSchedule(ctx, roomID)
	if err == nil {
		return booked, false, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, fmt.Errorf("get schedule of room %v: %w", roomID, ctxErr)
	}

	m.l.LogErrorf("Could not get schedule of room %v, showing all days as free: %v", roomID, err.Error())

	return nil, true, nil
}

func (m *Manager) Calendar(ctx context.Context, roomID, month string, basePrice float64) (*MonthView, error) {
	inputErr := newInputError()

	if roomID == "" {
		inputErr.addError("roomId", "provide roomId")
	}

	ym, err := calendar.ParseYearMonth(month)
	if err != nil {
		inputErr.addError("month", "provide month as YYYY-MM")
	}

	if err := inputErr.orNil(); err != nil {
		return nil, err
	}

	booked, degraded, err := m.fetchSchedule(ctx, roomID)
	if err != nil {
		return nil, err
	}

	c := calendar.Classifier{
		Today:    m.today(),
		Boundary: m.conf.AvailabilityBoundary,
		Booked:   booked,
	}

	return &MonthView{
		RoomID:   roomID,
		Month:    ym.String(),
		Days:     calendar.Month(ym, c, nil, m.calculator.PriceFunc(ctx, basePrice)),
		Degraded: degraded,
	}, nil
}

// Quote never rejects an empty or inverted range; such stays simply cost 0.
func (m *Manager) Quote(ctx context.Context, input QuoteInput) (*QuoteView, error) {
	if input.BasePrice < 0 {
		inputErr := newInputError()
		inputErr.addError("basePrice", "basePrice must not be negative")

		return nil, inputErr
	}

	view := &QuoteView{
		Quote: m.calculator.Quote(ctx, pricing.Stay{
			BasePrice: input.BasePrice,
			Checkin:   input.Checkin,
			Checkout:  input.Checkout,
		}),
	}

	if input.RoomID == "" {
		return view, nil
	}

	booked, degraded, err := m.fetchSchedule(ctx, input.RoomID)
	if err != nil {
		return nil, err
	}

	c := calendar.Classifier{Today: m.today(), Boundary: m.conf.PickerBoundary, Booked: booked}
	bookable := c.RangeBookable(input.Checkin, input.Checkout)
	view.Bookable = &bookable
	view.Degraded = degraded

	return view, nil
}

func (m *Manager) RefreshRules(ctx context.Context) error {
	if err := m.rules.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate rules: %w", err)
	}

	m.l.LogInfo("Price adjustments cache has been invalidated")

	return nil
}

func (m *Manager) classifier(s *Session) calendar.Classifier {
	return calendar.Classifier{
		Today:    m.today(),
		Boundary: m.conf.PickerBoundary,
		Booked:   s.Booked,
	}
}

func (m *Manager) view(ctx context.Context, s *Session, month *calendar.YearMonth) *SessionView {
	v := &SessionView{
		ID:        s.ID,
		RoomID:    s.RoomID,
		BasePrice: s.BasePrice,
		Phase:     s.Selection.Phase(),
		Checkin:   s.Selection.Checkin(),
		Checkout:  s.Selection.Checkout(),
		Preview:   s.Selection.Preview(),
		Loading:   s.Loading,
		Degraded:  s.Degraded,
	}

	if month != nil {
		v.Days = calendar.Month(*month, m.classifier(s), &s.Selection, m.calculator.PriceFunc(ctx, s.BasePrice))
	}

	return v
}

func (m *Manager) Open(ctx context.Context, input OpenInput) (*SessionView, error) {
	inputErr := newInputError()

	if input.RoomID == "" {
		inputErr.addError("roomId", "provide roomId")
	}

	if input.BasePrice < 0 {
		inputErr.addError("basePrice", "basePrice must not be negative")
	}

	if err := inputErr.orNil(); err != nil {
		return nil, err
	}

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := m.conf.Now().UTC()

	//nolint:exhaustruct
	s := &Session{
		ID:         id,
		RoomID:     input.RoomID,
		BasePrice:  input.BasePrice,
		Loading:    true,
		Generation: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
		cancel:     cancel,
	}

	if err := m.sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.l.LogInfo("Selection session %v opened for room %v", id, input.RoomID)

	view, err := m.loadSchedule(fetchCtx, ctx, id, s.Generation, input.RoomID)
	if err != nil {
		// the caller never learns the id, so the session must not outlive the failed open
		_, delErr := m.sessions.DeleteSession(context.WithoutCancel(ctx), id)
		if delErr != nil && !errors.Is(delErr, ErrRecordNotFound) {
			m.l.LogErrorf("Could not drop session %v after failed open: %v", id, delErr.Error())
		}

		return nil, err
	}

	return view, nil
}

// loadSchedule fetches booked intervals for one generation of a session. Results are dropped
// when the session was closed or moved to another room while the fetch was in flight.
func (m *Manager) loadSchedule(fetchCtx, ctx context.Context, id string, generation int, roomID string) (*SessionView, error) {
	booked, degraded, fetchErr := m.fetchSchedule(fetchCtx, roomID)

	s, err := m.sessions.UpdateSession(ctx, id, func(s *Session) error {
		if s.Generation != generation {
			return nil
		}

		// an interrupted fetch leaves the room without known bookings, which must be reported
		s.Loading = false
		s.cancel = nil
		s.Booked = booked
		s.Degraded = degraded || fetchErr != nil
		s.UpdatedAt = m.conf.Now().UTC()

		return nil
	})
	if errors.Is(err, ErrRecordNotFound) {
		m.l.LogInfo("Session %v closed while its schedule was loading, result dropped", id)

		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("apply schedule to session %v: %w", id, err)
	}

	if fetchErr != nil && s.Generation == generation {
		return nil, fetchErr
	}

	return m.view(ctx, s, nil), nil
}

func (m *Manager) Get(ctx context.Context, id, month string) (*SessionView, error) {
	var ym *calendar.YearMonth

	if month != "" {
		parsed, err := calendar.ParseYearMonth(month)
		if err != nil {
			inputErr := newInputError()
			inputErr.addError("month", "provide month as YYYY-MM")

			return nil, inputErr
		}

		ym = &parsed
	}

	s, err := m.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session %v: %w", id, err)
	}

	return m.view(ctx, s, ym), nil
}

func (m *Manager) update(ctx context.Context, id string, fn func(s *Session) error) (*SessionView, error) {
	s, err := m.sessions.UpdateSession(ctx, id, func(s *Session) error {
		if err := fn(s); err != nil {
			return err
		}

		s.UpdatedAt = m.conf.Now().UTC()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update session %v: %w", id, err)
	}

	return m.view(ctx, s, nil), nil
}

// Click applies one day click. Clicks on disabled days leave the session unchanged.
func (m *Manager) Click(ctx context.Context, id string, d calendar.Date) (*SessionView, error) {
	return m.update(ctx, id, func(s *Session) error {
		if !s.Selection.Click(d, m.classifier(s)) {
			m.l.LogDebug("Session %v ignored click on disabled day %v", id, d)
		}

		return nil
	})
}

func (m *Manager) Hover(ctx context.Context, id string, d calendar.Date) (*SessionView, error) {
	return m.update(ctx, id, func(s *Session) error {
		s.Selection.Hover(d)

		return nil
	})
}

func (m *Manager) Leave(ctx context.Context, id string) (*SessionView, error) {
	return m.update(ctx, id, func(s *Session) error {
		s.Selection.Leave()

		return nil
	})
}

// ChangeRoom abandons any in-flight schedule fetch, resets the selection and loads the new room.
func (m *Manager) ChangeRoom(ctx context.Context, id, roomID string) (*SessionView, error) {
	if roomID == "" {
		inputErr := newInputError()
		inputErr.addError("roomId", "provide roomId")

		return nil, inputErr
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var generation int

	_, err := m.sessions.UpdateSession(ctx, id, func(s *Session) error {
		s.stopFetch()
		s.Generation++
		s.RoomID = roomID
		s.Selection.Reset()
		s.Booked = nil
		s.Degraded = false
		s.Loading = true
		s.cancel = cancel
		s.UpdatedAt = m.conf.Now().UTC()
		generation = s.Generation

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("switch session %v to room %v: %w", id, roomID, err)
	}

	return m.loadSchedule(fetchCtx, ctx, id, generation, roomID)
}

func (m *Manager) Confirm(ctx context.Context, id string) (*Confirmation, error) {
	s, err := m.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session %v: %w", id, err)
	}

	r, err := s.Selection.Confirm()
	if err != nil {
		return nil, fmt.Errorf("confirm session %v: %w", id, err)
	}

	total := m.calculator.Total(ctx, pricing.Stay{
		BasePrice: s.BasePrice,
		Checkin:   r.Checkin,
		Checkout:  r.Checkout,
	})

	m.l.LogInfo("Session %v confirmed %v..%v for room %v", id, r.Checkin, r.Checkout, s.RoomID)

	return &Confirmation{
		Range:    r,
		Total:    total,
		Bookable: m.classifier(s).RangeBookable(r.Checkin, r.Checkout),
		Degraded: s.Degraded,
	}, nil
}

func (m *Manager) Close(ctx context.Context, id string) error {
	s, err := m.sessions.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session %v: %w", id, err)
	}

	s.stopFetch()

	m.l.LogInfo("Selection session %v closed", id)

	return nil
}

// EvictIdle closes sessions untouched for longer than idle and stops their pending fetches.
func (m *Manager) EvictIdle(ctx context.Context, idle time.Duration) (int, error) {
	evicted, err := m.sessions.DeleteIdleSessions(ctx, m.conf.Now().UTC().Add(-idle))
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}

	for _, s := range evicted {
		s.stopFetch()
	}

	if len(evicted) > 0 {
		m.l.LogInfo("Evicted %d idle selection sessions", len(evicted))
	}

	return len(evicted), nil
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.l.LogInfo("Session janitor stopped")

			return
		case <-ticker.C:
			if _, err := m.EvictIdle(ctx, idle); err != nil {
				m.l.LogErrorf("Could not evict idle sessions: %v", err.Error())
			}
		}
	}
}

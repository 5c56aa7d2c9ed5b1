package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avstrong/staycal/internal/logger"
	"github.com/avstrong/staycal/internal/pricing"
	"github.com/avstrong/staycal/internal/stay"
)

type Config struct {
	L *logger.Logger
}

// DB holds process-local state: the price adjustment snapshot and open selection sessions.
type DB struct {
	mu       sync.Mutex
	l        *logger.Logger
	rules    []pricing.Rule
	hasRules bool
	sessions map[string]*stay.Session
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:        conf.L,
		sessions: make(map[string]*stay.Session),
	}
}

func (db *DB) LoadRules(_ context.Context) ([]pricing.Rule, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.hasRules {
		return nil, false, nil
	}

	return append([]pricing.Rule(nil), db.rules...), true, nil
}

// SaveRules replaces the snapshot wholesale.
func (db *DB) SaveRules(_ context.Context, rules []pricing.Rule) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.rules = append(make([]pricing.Rule, 0, len(rules)), rules...)
	db.hasRules = true

	return nil
}

func (db *DB) DeleteRules(_ context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.rules = nil
	db.hasRules = false

	return nil
}

func (db *DB) SaveSession(_ context.Context, s *stay.Session) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.sessions[s.ID]; exists {
		return fmt.Errorf("session %s: %w", s.ID, ErrDuplicateSession)
	}

	cp := *s
	db.sessions[s.ID] = &cp

	return nil
}

func (db *DB) GetSession(_ context.Context, id string) (*stay.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, stay.ErrRecordNotFound
	}

	cp := *s

	return &cp, nil
}

// UpdateSession runs fn on a copy under the lock and stores it only when fn succeeds.
func (db *DB) UpdateSession(_ context.Context, id string, fn func(s *stay.Session) error) (*stay.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, stay.ErrRecordNotFound
	}

	cp := *s
	if err := fn(&cp); err != nil {
		return nil, err
	}

	db.sessions[id] = &cp
	out := cp

	return &out, nil
}

func (db *DB) DeleteSession(_ context.Context, id string) (*stay.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, stay.ErrRecordNotFound
	}

	delete(db.sessions, id)

	return s, nil
}

// DeleteIdleSessions removes every session last updated before the cutoff and returns them.
func (db *DB) DeleteIdleSessions(_ context.Context, before time.Time) ([]*stay.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var idle []*stay.Session

	for id, s := range db.sessions {
		if s.UpdatedAt.Before(before) {
			idle = append(idle, s)
			delete(db.sessions, id)
		}
	}

	if len(idle) > 0 {
		db.l.LogDebug("Dropped %d sessions idle since %v, %d left", len(idle), before, len(db.sessions))
	}

	return idle, nil
}

func (db *DB) SessionsCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.sessions)
}

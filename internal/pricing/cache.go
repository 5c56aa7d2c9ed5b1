package pricing

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/avstrong/staycal/internal/logger"
)

const rulesFlightKey = "price-adjustments"

type RuleSource interface {
	PriceAdjustments(ctx context.Context) ([]Rule, error)
}

// RuleStore keeps the fetched snapshot. ok is false when nothing was stored yet.
type RuleStore interface {
	LoadRules(ctx context.Context) (rules []Rule, ok bool, err error)
	SaveRules(ctx context.Context, rules []Rule) error
	DeleteRules(ctx context.Context) error
}

// RuleCache fetches the adjustment rules once and serves the snapshot until Invalidate.
// Concurrent misses share a single upstream call.
type RuleCache struct {
	l      *logger.Logger
	source RuleSource
	store  RuleStore
	group  singleflight.Group

	// mu orders snapshot writes against Invalidate. generation grows on every Invalidate;
	// a fetch started under an older generation must not store its result.
	mu         sync.Mutex
	generation uint64
}

func NewRuleCache(l *logger.Logger, source RuleSource, store RuleStore) *RuleCache {
	//nolint:exhaustruct
	return &RuleCache{
		l:      l,
		source: source,
		store:  store,
	}
}

// Rules never fails. A failed fetch is logged, left uncached and yields no rules,
// so prices degrade to the base price.
func (c *RuleCache) Rules(ctx context.Context) []Rule {
	rules, ok, err := c.store.LoadRules(ctx)
	if err != nil {
		c.l.LogErrorf("Could not load cached price adjustments: %v", err.Error())
	}

	if ok {
		return rules
	}

	ch := c.group.DoChan(rulesFlightKey, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), c.currentGeneration())
	})

	select {
	case <-ctx.Done():
		c.l.LogInfo("Price adjustments request abandoned: %v", ctx.Err())

		return nil
	case res := <-ch:
		if res.Err != nil {
			c.l.LogErrorf("Could not fetch price adjustments, falling back to base prices: %v", res.Err.Error())

			return nil
		}

		rules, _ := res.Val.([]Rule)

		return rules
	}
}

func (c *RuleCache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generation
}

func (c *RuleCache) fetch(ctx context.Context, generation uint64) ([]Rule, error) {
	rules, err := c.source.PriceAdjustments(ctx)
	if err != nil {
		return nil, fmt.Errorf("get price adjustments from source: %w", err)
	}

	if rules == nil {
		rules = []Rule{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		c.l.LogInfo("Price adjustments were invalidated during the fetch, result not cached")

		return rules, nil
	}

	if err := c.store.SaveRules(ctx, rules); err != nil {
		c.l.LogErrorf("Could not store price adjustments: %v", err.Error())
	}

	c.l.LogInfo("Price adjustments have been cached, %d rules", len(rules))

	return rules, nil
}

// Invalidate drops the snapshot so the next Rules call fetches again.
// A fetch already in flight still answers its waiters but no longer writes the snapshot.
func (c *RuleCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.group.Forget(rulesFlightKey)

	if err := c.store.DeleteRules(ctx); err != nil {
		return fmt.Errorf("delete cached price adjustments: %w", err)
	}

	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/avstrong/staycal/internal/pricing"
)

const DefaultRulesKey = "staycal:price-adjustments"

type Config struct {
	Addr     string
	Password string
	DB       int
	RulesKey string
}

// RuleStore shares the adjustment snapshot between service instances. Keys never expire.
type RuleStore struct {
	client *goredis.Client
	key    string
}

// Connect dials redis and pings it once.
func Connect(ctx context.Context, conf Config) (*RuleStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second) //nolint:gomnd
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis at %v: %w", conf.Addr, err)
	}

	return New(client, conf.RulesKey), nil
}

func New(client *goredis.Client, key string) *RuleStore {
	if key == "" {
		key = DefaultRulesKey
	}

	return &RuleStore{client: client, key: key}
}

func (s *RuleStore) LoadRules(ctx context.Context) ([]pricing.Rule, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("get %v: %w", s.key, err)
	}

	var rules []pricing.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, false, fmt.Errorf("decode %v: %w", s.key, err)
	}

	return rules, true, nil
}

func (s *RuleStore) SaveRules(ctx context.Context, rules []pricing.Rule) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set %v: %w", s.key, err)
	}

	return nil
}

func (s *RuleStore) DeleteRules(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("del %v: %w", s.key, err)
	}

	return nil
}

func (s *RuleStore) Close() error {
	return s.client.Close()
}

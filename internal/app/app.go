package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/config"
	"github.com/avstrong/staycal/internal/hotelapi"
	"github.com/avstrong/staycal/internal/idgen/simple"
	"github.com/avstrong/staycal/internal/logger"
	"github.com/avstrong/staycal/internal/migration"
	"github.com/avstrong/staycal/internal/pricing"
	"github.com/avstrong/staycal/internal/stay"
	"github.com/avstrong/staycal/internal/storage/memory"
	"github.com/avstrong/staycal/internal/storage/redis"
	"github.com/avstrong/staycal/internal/transport/web"
)

type upstream interface {
	pricing.RuleSource
	RoomSchedule(ctx context.Context, roomID string) ([]calendar.BookingInterval, error)
}

func buildUpstream(ctx context.Context, l *logger.Logger, conf *config.Config, loc *time.Location) (upstream, error) {
	if conf.Upstream.Offline {
		offline := memory.NewUpstream()
		if err := migration.Up(ctx, l, offline, calendar.DateOf(time.Now().In(loc))); err != nil {
			return nil, fmt.Errorf("seed offline upstream: %w", err)
		}

		l.LogInfo("Running against the seeded offline upstream")

		return offline, nil
	}

	client, err := hotelapi.New(hotelapi.Conf{
		L:             l,
		BaseURL:       conf.Upstream.BaseURL,
		Token:         conf.Upstream.Token,
		Timeout:       conf.Upstream.Timeout,
		RatePerSecond: conf.Upstream.RatePerSecond,
		Location:      loc,
	})
	if err != nil {
		return nil, fmt.Errorf("init hotel api client: %w", err)
	}

	return client, nil
}

func buildRuleStore(ctx context.Context, conf *config.Config, db *memory.DB) (pricing.RuleStore, func(), error) {
	if conf.Cache.Backend != config.CacheRedis {
		return db, func() {}, nil
	}

	store, err := redis.Connect(ctx, redis.Config{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
		RulesKey: conf.Redis.Key,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect rule cache: %w", err)
	}

	return store, func() { _ = store.Close() }, nil
}

//nolint:funlen // linear wiring
func Run(l *logger.Logger, conf *config.Config) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	loc, err := conf.Location()
	if err != nil {
		return fmt.Errorf("load location: %w", err)
	}

	up, err := buildUpstream(ctx, l, conf, loc)
	if err != nil {
		return err
	}

	storage := memory.New(memory.Config{L: l})

	ruleStore, closeStore, err := buildRuleStore(ctx, conf, storage)
	if err != nil {
		return err
	}
	defer closeStore()

	l.LogInfo("Price adjustments are cached in %v", conf.Cache.Backend)

	rules := pricing.NewRuleCache(l, up, ruleStore)
	stayManager := stay.New(
		l,
		stay.Conf{
			Location:             loc,
			PickerBoundary:       conf.PickerBoundary(),
			AvailabilityBoundary: conf.AvailabilityBoundary(),
			Now:                  time.Now,
		},
		up,
		rules,
		storage,
		simple.New(),
	)

	go stayManager.RunJanitor(ctx, conf.Session.IdleTTL, conf.Session.SweepInterval)

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      l.StdLog(),
		Host:              conf.HTTP.Host,
		Port:              conf.HTTP.Port,
		ReadHeaderTimeout: conf.HTTP.ReadHeaderTimeout,
		LivenessEndpoint:  conf.HTTP.LivenessEndpoint,
	}

	srv, err := web.New(ctx, webConf, stayManager)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), conf.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}

package hotelapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/logger"
	"github.com/avstrong/staycal/internal/pricing"
)

const tracerName = "github.com/avstrong/staycal/internal/hotelapi"

type Conf struct {
	L             *logger.Logger
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RatePerSecond float64
	// Location turns schedule datetimes into calendar days.
	Location   *time.Location
	HTTPClient *http.Client
}

// Client reads price adjustments and room schedules from the hotel REST API. It never retries.
type Client struct {
	l       *logger.Logger
	base    *url.URL
	token   string
	loc     *time.Location
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

func New(conf Conf) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(conf.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream base url %q: %w", conf.BaseURL, ErrBaseURL)
	}

	httpClient := conf.HTTPClient
	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{Timeout: conf.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if conf.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(conf.RatePerSecond), int(conf.RatePerSecond)+1)
	}

	loc := conf.Location
	if loc == nil {
		loc = time.Local
	}

	return &Client{
		l:       conf.L,
		base:    base,
		token:   conf.Token,
		loc:     loc,
		http:    httpClient,
		limiter: limiter,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

func (c *Client) PriceAdjustments(ctx context.Context) ([]pricing.Rule, error) {
	var rules []pricing.Rule

	if err := c.get(ctx, "price-adjustments", &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// RoomSchedule returns the half-open booking intervals of a room as calendar days in the client location.
func (c *Client) RoomSchedule(ctx context.Context, roomID string) ([]calendar.BookingInterval, error) {
	var entries []scheduleEntry

	if err := c.get(ctx, "rooms/"+url.PathEscape(roomID)+"/schedule", &entries); err != nil {
		return nil, err
	}

	booked := make([]calendar.BookingInterval, 0, len(entries))

	for i, e := range entries {
		interval, err := e.interval(c.loc)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d of room %v: %w", i, roomID, err)
		}

		booked = append(booked, interval)
	}

	return booked, nil
}

func (c *Client) get(ctx context.Context, path string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "GET /"+path, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for upstream rate limiter: %w", err)
	}

	target := c.base.JoinPath(path)
	span.SetAttributes(attribute.String("http.url", target.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request %v: %w", target, err)
	}

	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %v: %w", target, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.l.LogDebug("upstream GET %v -> %d in %s", target, resp.StatusCode, time.Since(start))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:gomnd

		return &StatusError{URL: target.String(), Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %v: %w", target, err)
	}

	return nil
}

package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

const userAgent = "desalination-map/1.0 (+https://github.com/couchcryptid/desalination-map)"

// errCallerGone marks fetches abandoned by the caller. They say nothing about
// upstream health and are excluded from the breaker counts.
var errCallerGone = errors.New("caller canceled")

// Fetcher downloads the source article. Each call is a single GET; repeated
// upstream failures open a circuit breaker so later requests fail fast.
type Fetcher struct {
	url     string
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFetcher creates a fetcher for url with the given request timeout.
func NewFetcher(url string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "wikipedia",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		IsExcluded: func(err error) bool {
			return errors.Is(err, errCallerGone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Fetcher{
		url:     url,
		client:  client,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// URL returns the page this fetcher downloads.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch returns the raw HTML of the source page. All failures wrap
// domain.ErrUpstream.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	body, err := f.breaker.Execute(func() ([]byte, error) {
		return f.get(ctx)
	})
	f.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "circuit_open"
		case errors.Is(err, errCallerGone):
			outcome = "canceled"
		}
		f.metrics.FetchRequests.WithLabelValues(outcome).Inc()
		if errors.Is(err, domain.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch %s: %w: %w", f.url, domain.ErrUpstream, err)
	}

	f.metrics.FetchRequests.WithLabelValues("success").Inc()
	f.logger.Debug("source page fetched", "url", f.url, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (f *Fetcher) get(ctx context.Context) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(f.url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w: %w: %w", f.url, domain.ErrUpstream, errCallerGone, err)
		}
		return nil, fmt.Errorf("fetch %s: %w: %w", f.url, domain.ErrUpstream, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch %s: %w: status %d", f.url, domain.ErrUpstream, resp.StatusCode())
	}
	return resp.Body(), nil
}

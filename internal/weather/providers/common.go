package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20

// TransportConfig bundles HTTP client and resilience settings.
type TransportConfig struct {
	Name   string
	Client *http.Client

	// RatePerSecond <= 0 disables rate limiting.
	RatePerSecond float64
	Burst         int

	Logger zerolog.Logger
}

// Transport issues single-attempt GETs behind a rate limiter and a circuit
// breaker. It never retries.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	circuit *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewTransport creates a Transport. A nil client means http.DefaultClient.
func NewTransport(cfg TransportConfig) *Transport {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	name := cfg.Name
	if name == "" {
		name = "provider"
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	logger := cfg.Logger.With().Str("provider", name).Logger()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Caller cancellation and client errors say nothing about provider health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var cte *weather.ContentTypeError
			if errors.As(err, &cte) {
				return cte.StatusCode < 500 && cte.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &Transport{
		client:  client,
		limiter: limiter,
		circuit: cb,
		logger:  logger,
	}
}

// Get fetches rawURL and returns its body. The response must have a 2xx status
// and the media type want.
func (t *Transport) Get(ctx context.Context, rawURL, want string) ([]byte, error) {
	safeURL := redactURL(rawURL)

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, &weather.CancelledError{URL: safeURL, Err: ctx.Err()}
			}
			return nil, fmt.Errorf("%w: %s: %v", weather.ErrThrottled, safeURL, err)
		}
	}

	result, err := t.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", want)

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			t.logger.Warn().Str("url", safeURL).Str("retryAfter", resp.Header.Get("Retry-After")).Msg("provider rate limit hit")
		}

		got := resp.Header.Get("Content-Type")
		if resp.StatusCode < 200 || resp.StatusCode > 299 || !mediaTypeIs(got, want) {
			return nil, &weather.ContentTypeError{URL: safeURL, StatusCode: resp.StatusCode, Got: got, Want: want}
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	})

	if err == nil {
		body, ok := result.([]byte)
		if !ok {
			return nil, &weather.TransportError{URL: safeURL, Err: fmt.Errorf("unexpected result type %T", result)}
		}
		return body, nil
	}

	if ctx.Err() != nil {
		return nil, &weather.CancelledError{URL: safeURL, Err: ctx.Err()}
	}

	var cte *weather.ContentTypeError
	if errors.As(err, &cte) {
		return nil, cte
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		t.logger.Warn().Err(err).Str("url", safeURL).Msg("provider circuit open")
	}
	return nil, &weather.TransportError{URL: safeURL, Err: err}
}

func mediaTypeIs(header, want string) bool {
	mt, _, err := mime.ParseMediaType(header)
	return err == nil && mt == want
}

// redactURL hides the api key so URLs can be logged and returned in errors.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("appid") {
		q.Set("appid", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

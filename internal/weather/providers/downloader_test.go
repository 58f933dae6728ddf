package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-tracker/internal/weather"
)

func newTestDownloader(client *http.Client) *Downloader {
	return NewDownloader(NewTransport(TransportConfig{Name: "test", Client: client, Logger: zerolog.Nop()}), zerolog.Nop())
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func TestDownloaderFetch(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"ok":true}`))
	defer srv.Close()

	d := newTestDownloader(srv.Client())
	body, err := d.Fetch(context.Background(), srv.URL+"/weather?appid=k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Zero(t, d.InFlight())
}

func TestDownloaderSingleFlight(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		<-release
		jsonHandler(`{}`)(w, r)
	}))
	defer srv.Close()

	d := newTestDownloader(srv.Client())
	u := srv.URL + "/weather?lat=1&lon=2"

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = d.Fetch(context.Background(), u)
	}()

	<-started
	_, err := d.Fetch(context.Background(), u)
	assert.ErrorIs(t, err, weather.ErrInProgress)
	assert.Equal(t, 1, d.InFlight())

	// A different URL is not blocked.
	other := make(chan error, 1)
	go func() {
		_, err := d.Fetch(context.Background(), srv.URL+"/forecast?lat=1&lon=2")
		other <- err
	}()

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.NoError(t, <-other)
	assert.Equal(t, int32(2), hits.Load())

	// The URL is free again once the first request finished.
	_, err = d.Fetch(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDownloaderWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	d := newTestDownloader(srv.Client())
	_, err := d.Fetch(context.Background(), srv.URL+"/weather?appid=secret")

	var cte *weather.ContentTypeError
	require.ErrorAs(t, err, &cte)
	assert.Equal(t, "text/html", cte.Got)
	assert.Equal(t, JSONMediaType, cte.Want)
	assert.Equal(t, http.StatusOK, cte.StatusCode)
	assert.NotContains(t, err.Error(), "secret")
	assert.Zero(t, d.InFlight())
}

func TestDownloaderNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	d := newTestDownloader(srv.Client())
	_, err := d.Fetch(context.Background(), srv.URL+"/weather")

	var cte *weather.ContentTypeError
	require.ErrorAs(t, err, &cte)
	assert.Equal(t, http.StatusUnauthorized, cte.StatusCode)
}

func TestDownloaderTransportError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{}`))
	u := srv.URL + "/weather"
	srv.Close()

	d := newTestDownloader(&http.Client{Timeout: time.Second})
	_, err := d.Fetch(context.Background(), u)
	assert.ErrorIs(t, err, weather.ErrTransport)
	assert.Zero(t, d.InFlight())
}

func TestDownloaderCancellationFreesURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		jsonHandler(`{}`)(w, r)
	}))
	defer srv.Close()

	d := newTestDownloader(srv.Client())
	u := srv.URL + "/weather"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Fetch(ctx, u)
		done <- err
	}()

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, weather.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, d.InFlight())

	_, err = d.Fetch(context.Background(), u)
	assert.NoError(t, err)
}

func TestTransportRateLimitWaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{}`))
	defer srv.Close()

	tr := NewTransport(TransportConfig{Client: srv.Client(), RatePerSecond: 0.001, Burst: 1, Logger: zerolog.Nop()})
	_, err := tr.Get(context.Background(), srv.URL, JSONMediaType)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Get(ctx, srv.URL, JSONMediaType)
	assert.ErrorIs(t, err, weather.ErrThrottled)
	assert.NotErrorIs(t, err, weather.ErrTransport)
	assert.False(t, strings.Contains(err.Error(), "status"))
}

func TestTransportBreakerTripsOnServerErrors(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Header().Set("Content-Type", "text/plain")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(status)
			}))
			defer srv.Close()

			tr := NewTransport(TransportConfig{Client: srv.Client(), Logger: zerolog.Nop()})
			for i := 0; i < 6; i++ {
				_, err := tr.Get(context.Background(), srv.URL+"?appid=secret", JSONMediaType)
				var cte *weather.ContentTypeError
				require.ErrorAs(t, err, &cte)
				assert.Equal(t, status, cte.StatusCode)
				assert.NotContains(t, cte.URL, "secret")
			}

			_, err := tr.Get(context.Background(), srv.URL, JSONMediaType)
			assert.ErrorIs(t, err, weather.ErrTransport)
			assert.ErrorIs(t, err, gobreaker.ErrOpenState)
			assert.Equal(t, int32(6), hits.Load(), "an open breaker does not reach the provider")
		})
	}
}

func TestTransportBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewTransport(TransportConfig{Client: srv.Client(), Logger: zerolog.Nop()})
	for i := 0; i < 10; i++ {
		_, err := tr.Get(context.Background(), srv.URL, JSONMediaType)
		var cte *weather.ContentTypeError
		require.ErrorAs(t, err, &cte)
		assert.Equal(t, http.StatusNotFound, cte.StatusCode)
	}
	assert.Equal(t, int32(10), hits.Load())
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/weather?appid=REDACTED&lat=1", redactURL("https://example.com/weather?lat=1&appid=abc"))
	assert.Equal(t, "https://example.com/weather?lat=1", redactURL("https://example.com/weather?lat=1"))
}

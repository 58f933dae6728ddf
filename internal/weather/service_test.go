package weather_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/i474232898/weather-tracker/internal/weather/providers"
)

// fakeFetcher serves a fixed body or error and records requested URLs.
type fakeFetcher struct {
	mu   sync.Mutex
	urls []string
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, u string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, u)
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store   *store.MemoryStore
	fetcher *fakeFetcher
	clock   *clock
	svc     *weather.Service
}

func newFixture(t *testing.T, apiKey string, units weather.UnitSystem) *fixture {
	t.Helper()
	urls, err := providers.NewOpenWeatherURLs("", apiKey, "")
	require.NoError(t, err)

	f := &fixture{
		store:   store.NewMemoryStore(),
		fetcher: &fakeFetcher{},
		clock:   &clock{t: time.Date(2024, 9, 18, 14, 0, 0, 0, time.UTC)},
	}
	f.svc = weather.NewService(f.store, f.store, urls, f.fetcher,
		weather.WithClock(f.clock.now),
		weather.WithUnits(units),
		weather.WithLogger(zerolog.Nop()),
	)
	return f
}

func (f *fixture) addLocation(t *testing.T, id string, coord *weather.Coordinate) {
	t.Helper()
	require.NoError(t, f.store.SaveLocation(context.Background(), weather.TrackedLocation{
		ID:        id,
		Name:      id,
		Coord:     coord,
		CreatedAt: f.clock.now(),
	}))
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return raw
}

func TestRequestDataDownloadsDecodesAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
	f.fetcher.body = readFixture(t, "current.json")

	res, err := f.svc.RequestData(ctx, "korla", weather.KindCurrent, false)
	require.NoError(t, err)

	require.Equal(t, 1, f.fetcher.calls())
	u, err := url.Parse(f.fetcher.urls[0])
	require.NoError(t, err)
	assert.Equal(t, "/data/2.5/weather", u.Path)
	assert.Equal(t, "38.82", u.Query().Get("lat"))
	assert.Equal(t, "82.78", u.Query().Get("lon"))
	assert.Equal(t, "test-key", u.Query().Get("appid"))

	cc, ok := res.Record.(weather.CurrentConditions)
	require.True(t, ok)
	assert.Equal(t, weather.Celsius, cc.Temperature.Unit)
	assert.InDelta(t, 22.0, cc.Temperature.Value, 1e-9)
	assert.InDelta(t, 0.65, cc.Humidity, 1e-12)
	assert.Equal(t, f.clock.now(), res.DownloadedAt)
	assert.False(t, res.Stale)

	slot, err := f.store.GetCachedPayload(ctx, "korla", weather.KindCurrent)
	require.NoError(t, err)
	assert.Equal(t, f.fetcher.body, slot.Payload)
	assert.Equal(t, f.clock.now(), slot.DownloadedAt)

	other, err := f.store.GetCachedPayload(ctx, "korla", weather.KindForecast)
	require.NoError(t, err)
	assert.True(t, other.Empty(), "kinds are cached independently")
}

func TestRequestDataImperialLocale(t *testing.T) {
	f := newFixture(t, "test-key", weather.Imperial)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
	f.fetcher.body = readFixture(t, "current.json")

	res, err := f.svc.RequestData(context.Background(), "korla", weather.KindCurrent, false)
	require.NoError(t, err)

	cc := res.Record.(weather.CurrentConditions)
	assert.Equal(t, weather.Fahrenheit, cc.Temperature.Unit)
	assert.InDelta(t, 71.6, cc.Temperature.Value, 1e-9)
}

func TestRequestDataHonoursStaleness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
	f.fetcher.body = readFixture(t, "pollution.json")

	first, err := f.svc.RequestData(ctx, "korla", weather.KindPollution, false)
	require.NoError(t, err)
	require.Equal(t, 1, f.fetcher.calls())

	f.clock.advance(599 * time.Second)
	cached, err := f.svc.RequestData(ctx, "korla", weather.KindPollution, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.calls(), "fresh payload must not be downloaded again")
	assert.Equal(t, first.DownloadedAt, cached.DownloadedAt)
	assert.Equal(t, weather.AQIFair, cached.Record.(weather.PollutionReading).Index)

	_, err = f.svc.RequestData(ctx, "korla", weather.KindPollution, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fetcher.calls(), "force always downloads")

	f.clock.advance(600 * time.Second)
	refreshed, err := f.svc.RequestData(ctx, "korla", weather.KindPollution, false)
	require.NoError(t, err)
	assert.Equal(t, 3, f.fetcher.calls())
	assert.Equal(t, f.clock.now(), refreshed.DownloadedAt)

	stats := f.svc.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.Downloads)
}

func TestRequestDataMissingCoordinates(t *testing.T) {
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "nowhere", nil)

	_, err := f.svc.RequestData(context.Background(), "nowhere", weather.KindCurrent, false)
	require.ErrorIs(t, err, weather.ErrMissingCoordinates)
	assert.Zero(t, f.fetcher.calls())

	var re *weather.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "nowhere", re.LocationID)
	assert.Equal(t, weather.KindCurrent, re.Kind)
}

func TestRequestDataUnknownLocation(t *testing.T) {
	f := newFixture(t, "test-key", weather.Metric)

	_, err := f.svc.RequestData(context.Background(), "missing", weather.KindForecast, false)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
	assert.Zero(t, f.fetcher.calls())
}

func TestRequestDataWithoutAPIKey(t *testing.T) {
	f := newFixture(t, "", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})

	_, err := f.svc.RequestData(context.Background(), "korla", weather.KindCurrent, false)
	assert.ErrorIs(t, err, weather.ErrInvalidConfiguration)
	assert.Zero(t, f.fetcher.calls())
}

func TestRequestDataDecodeFailureKeepsPreviousPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})

	good := readFixture(t, "current.json")
	old := f.clock.now().Add(-time.Hour)
	require.NoError(t, f.store.SetCachedPayload(ctx, "korla", weather.KindCurrent, good, old))

	f.fetcher.body = []byte(`{"cod": 200}`)
	_, err := f.svc.RequestData(ctx, "korla", weather.KindCurrent, false)
	require.ErrorIs(t, err, weather.ErrDecode)

	slot, err := f.store.GetCachedPayload(ctx, "korla", weather.KindCurrent)
	require.NoError(t, err)
	assert.Equal(t, good, slot.Payload)
	assert.Equal(t, old, slot.DownloadedAt)
}

func TestRequestOrCachedFallsBackToStalePayload(t *testing.T) {
	ctx := context.Background()

	for name, fetchErr := range map[string]error{
		"in progress": weather.ErrInProgress,
		"transport":   &weather.TransportError{URL: "u", Err: errors.New("connection refused")},
		"content type": &weather.ContentTypeError{
			URL: "u", StatusCode: 200, Got: "text/html", Want: "application/json",
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "test-key", weather.Metric)
			f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
			old := f.clock.now().Add(-time.Hour)
			require.NoError(t, f.store.SetCachedPayload(ctx, "korla", weather.KindCurrent, readFixture(t, "current.json"), old))
			f.fetcher.err = fetchErr

			_, err := f.svc.RequestData(ctx, "korla", weather.KindCurrent, false)
			require.ErrorIs(t, err, fetchErr)

			res, err := f.svc.RequestOrCached(ctx, "korla", weather.KindCurrent, false)
			require.NoError(t, err)
			assert.True(t, res.Stale)
			assert.Equal(t, old, res.DownloadedAt)
			assert.IsType(t, weather.CurrentConditions{}, res.Record)
			assert.Equal(t, int64(1), f.svc.Stats().Fallbacks)
		})
	}
}

func TestRequestOrCachedWithoutCacheSurfacesError(t *testing.T) {
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
	f.fetcher.err = weather.ErrInProgress

	_, err := f.svc.RequestOrCached(context.Background(), "korla", weather.KindForecast, false)
	assert.ErrorIs(t, err, weather.ErrInProgress)
	assert.Equal(t, int64(1), f.svc.Stats().InProgress)
}

func TestRequestOrCachedDoesNotFallBackOnCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
	require.NoError(t, f.store.SetCachedPayload(ctx, "korla", weather.KindCurrent, readFixture(t, "current.json"), f.clock.now().Add(-time.Hour)))
	f.fetcher.err = &weather.CancelledError{URL: "u", Err: context.Canceled}

	_, err := f.svc.RequestOrCached(ctx, "korla", weather.KindCurrent, false)
	assert.ErrorIs(t, err, weather.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})

	_, err := f.svc.Cached(ctx, "korla", weather.KindCurrent)
	assert.ErrorIs(t, err, weather.ErrNotCached)

	require.NoError(t, f.store.SetCachedPayload(ctx, "korla", weather.KindCurrent, readFixture(t, "current.json"), f.clock.now().Add(-time.Minute)))
	res, err := f.svc.Cached(ctx, "korla", weather.KindCurrent)
	require.NoError(t, err)
	assert.False(t, res.Stale)

	f.clock.advance(10 * time.Minute)
	res, err = f.svc.Cached(ctx, "korla", weather.KindCurrent)
	require.NoError(t, err)
	assert.True(t, res.Stale)

	assert.NotPanics(t, func() {
		_, err = f.svc.Cached(ctx, "korla", weather.DataKind(7))
	})
	var reqErr *weather.RequestError
	assert.ErrorAs(t, err, &reqErr)
}

func TestFiveDayForecast(t *testing.T) {
	f := newFixture(t, "test-key", weather.Metric)
	f.addLocation(t, "korla", &weather.Coordinate{Lat: 38.82, Lon: 82.78})
	f.fetcher.body = readFixture(t, "forecast.json")

	days, err := f.svc.FiveDayForecast(context.Background(), "korla", f.clock.now())
	require.NoError(t, err)

	require.Len(t, days, 3)
	for i, d := range days {
		assert.Equal(t, 19+i, d.Timestamp.Day())
		assert.Equal(t, 12, d.Timestamp.Hour())
	}
	assert.Contains(t, f.fetcher.urls[0], "/forecast?")
}

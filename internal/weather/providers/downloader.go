package providers

import (
	"context"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// JSONMediaType is the media type provider responses must carry.
const JSONMediaType = "application/json"

// Downloader allows at most one outstanding request per URL. A caller that
// asks for a URL already in flight gets weather.ErrInProgress at once and
// does not share the running request's result.
type Downloader struct {
	transport *Transport
	mediaType string
	inFlight  cmap.ConcurrentMap[string, struct{}]
	logger    zerolog.Logger
}

// NewDownloader creates a Downloader expecting JSON responses.
func NewDownloader(transport *Transport, logger zerolog.Logger) *Downloader {
	return &Downloader{
		transport: transport,
		mediaType: JSONMediaType,
		inFlight:  cmap.New[struct{}](),
		logger:    logger,
	}
}

// Fetch implements weather.Fetcher.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !d.inFlight.SetIfAbsent(url, struct{}{}) {
		d.logger.Debug().Str("url", redactURL(url)).Msg("download already in progress")
		return nil, weather.ErrInProgress
	}
	defer d.inFlight.Remove(url)

	return d.transport.Get(ctx, url, d.mediaType)
}

// InFlight returns the number of downloads currently running.
func (d *Downloader) InFlight() int {
	return d.inFlight.Count()
}

// Package geocode names coordinates through the Google reverse geocoding API.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/kelvins/geocoder"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// ErrNoAddress is returned when the geocoder knows nothing about a coordinate.
var ErrNoAddress = errors.New("no address for coordinate")

// ReverseGeocoder turns coordinates into display names such as "Paris, France".
type ReverseGeocoder struct {
	reverse func(geocoder.Location) ([]geocoder.Address, error)
	logger  zerolog.Logger
}

// New configures the geocoder package with apiKey. The key is process-wide in
// the underlying library.
func New(apiKey string, logger zerolog.Logger) *ReverseGeocoder {
	geocoder.ApiKey = apiKey
	return &ReverseGeocoder{
		reverse: geocoder.GeocodingReverse,
		logger:  logger,
	}
}

type answer struct {
	addrs []geocoder.Address
	err   error
}

// Name returns a display name for c. The library call cannot be cancelled;
// when ctx ends first its result is dropped.
func (g *ReverseGeocoder) Name(ctx context.Context, c weather.Coordinate) (string, error) {
	ch := make(chan answer, 1)
	go func() {
		addrs, err := g.reverse(geocoder.Location{Latitude: c.Lat, Longitude: c.Lon})
		ch <- answer{addrs, err}
	}()

	var a answer
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a = <-ch:
	}

	if a.err != nil {
		// OVER_QUERY_LIMIT shows up as a plain error from the library.
		if strings.Contains(a.err.Error(), "OVER_QUERY_LIMIT") {
			g.logger.Warn().Err(a.err).Str("coord", c.String()).Msg("geocoder rate limit hit")
		}
		return "", a.err
	}
	return displayName(a.addrs)
}

func displayName(addrs []geocoder.Address) (string, error) {
	for _, addr := range addrs {
		if addr.City == "" {
			continue
		}
		if addr.Country == "" {
			return addr.City, nil
		}
		return addr.City + ", " + addr.Country, nil
	}
	for _, addr := range addrs {
		if addr.FormattedAddress != "" {
			return addr.FormattedAddress, nil
		}
	}
	return "", ErrNoAddress
}

package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/kelvins/geocoder"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-tracker/internal/weather"
)

func stub(addrs []geocoder.Address, err error) *ReverseGeocoder {
	return &ReverseGeocoder{
		reverse: func(geocoder.Location) ([]geocoder.Address, error) { return addrs, err },
		logger:  zerolog.Nop(),
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		addrs []geocoder.Address
		want  string
	}{
		{"city and country", []geocoder.Address{{City: "Paris", Country: "France"}}, "Paris, France"},
		{"city only", []geocoder.Address{{City: "Paris"}}, "Paris"},
		{"first with city wins", []geocoder.Address{
			{FormattedAddress: "Route 1"},
			{City: "Lyon", Country: "France"},
		}, "Lyon, France"},
		{"formatted fallback", []geocoder.Address{{FormattedAddress: "Middle of the Atlantic"}}, "Middle of the Atlantic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stub(tt.addrs, nil).Name(context.Background(), weather.Coordinate{Lat: 1, Lon: 2})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameErrors(t *testing.T) {
	_, err := stub(nil, nil).Name(context.Background(), weather.Coordinate{})
	assert.ErrorIs(t, err, ErrNoAddress)

	_, err = stub([]geocoder.Address{{}}, nil).Name(context.Background(), weather.Coordinate{})
	assert.ErrorIs(t, err, ErrNoAddress)

	boom := errors.New("OVER_QUERY_LIMIT")
	_, err = stub(nil, boom).Name(context.Background(), weather.Coordinate{})
	assert.ErrorIs(t, err, boom)
}

func TestNameHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	g := &ReverseGeocoder{
		reverse: func(geocoder.Location) ([]geocoder.Address, error) {
			<-release
			return []geocoder.Address{{City: "Late"}}, nil
		},
		logger: zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Name(ctx, weather.Coordinate{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSetsKey(t *testing.T) {
	prev := geocoder.ApiKey
	t.Cleanup(func() { geocoder.ApiKey = prev })

	g := New("secret", zerolog.Nop())
	assert.Equal(t, "secret", geocoder.ApiKey)
	assert.NotNil(t, g.reverse)
}

package weather

import (
	"context"
	"time"
)

// Fetcher performs a single GET and returns the validated response body.
// Implementations return ErrInProgress when the URL is already being fetched.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// URLBuilder builds provider request URLs per data kind.
type URLBuilder interface {
	Build(kind DataKind, coord Coordinate) (string, error)
}

// Store persists the cached payload slots of tracked locations.
type Store interface {
	// GetCachedPayload returns an empty Slot when nothing was cached yet.
	GetCachedPayload(ctx context.Context, locationID string, kind DataKind) (Slot, error)
	// SetCachedPayload replaces payload and timestamp together.
	SetCachedPayload(ctx context.Context, locationID string, kind DataKind, payload []byte, at time.Time) error
}

// LocationStore persists tracked locations. GetLocation and DeleteLocation
// return ErrLocationNotFound for unknown ids.
type LocationStore interface {
	SaveLocation(ctx context.Context, loc TrackedLocation) error
	GetLocation(ctx context.Context, id string) (TrackedLocation, error)
	ListLocations(ctx context.Context) ([]TrackedLocation, error)
	DeleteLocation(ctx context.Context, id string) error
}

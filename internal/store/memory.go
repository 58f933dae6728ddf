package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// locationRecord holds a tracked location and its payload slots, indexed by
// weather.DataKind.
type locationRecord struct {
	location weather.TrackedLocation
	slots    [len(weather.Kinds)]weather.Slot
}

// MemoryStore is a concurrency-safe in-memory implementation of
// weather.Store and weather.LocationStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location id
	data map[string]*locationRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*locationRecord),
	}
}

// SaveLocation inserts or replaces a location. Cached payloads of an existing
// location are kept.
func (s *MemoryStore) SaveLocation(_ context.Context, loc weather.TrackedLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[loc.ID]
	if !ok {
		rec = &locationRecord{}
		s.data[loc.ID] = rec
	}
	rec.location = copyLocation(loc)
	return nil
}

// GetLocation returns the location with id.
func (s *MemoryStore) GetLocation(_ context.Context, id string) (weather.TrackedLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return weather.TrackedLocation{}, weather.ErrLocationNotFound
	}
	return copyLocation(rec.location), nil
}

// ListLocations returns all locations ordered by creation time.
func (s *MemoryStore) ListLocations(_ context.Context) ([]weather.TrackedLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.TrackedLocation, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, copyLocation(rec.location))
	}
	sortLocations(out)
	return out, nil
}

// DeleteLocation removes a location together with its cached payloads.
func (s *MemoryStore) DeleteLocation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return weather.ErrLocationNotFound
	}
	delete(s.data, id)
	return nil
}

// GetCachedPayload returns a copy of the slot for (id, kind).
func (s *MemoryStore) GetCachedPayload(_ context.Context, id string, kind weather.DataKind) (weather.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return weather.Slot{}, weather.ErrLocationNotFound
	}
	slot := rec.slots[kind]
	return weather.Slot{Payload: cloneBytes(slot.Payload), DownloadedAt: slot.DownloadedAt}, nil
}

// SetCachedPayload replaces payload and timestamp of (id, kind) under one lock.
func (s *MemoryStore) SetCachedPayload(_ context.Context, id string, kind weather.DataKind, payload []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return weather.ErrLocationNotFound
	}
	rec.slots[kind] = weather.Slot{Payload: cloneBytes(payload), DownloadedAt: at}
	return nil
}

func copyLocation(loc weather.TrackedLocation) weather.TrackedLocation {
	if loc.Coord != nil {
		c := *loc.Coord
		loc.Coord = &c
	}
	return loc
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func sortLocations(locs []weather.TrackedLocation) {
	sort.Slice(locs, func(i, j int) bool {
		if !locs[i].CreatedAt.Equal(locs[j].CreatedAt) {
			return locs[i].CreatedAt.Before(locs[j].CreatedAt)
		}
		return locs[i].ID < locs[j].ID
	})
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-tracker/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	lat        REAL,
	lon        REAL,
	is_gps     INTEGER NOT NULL DEFAULT 0,
	is_default INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS payloads (
	location_id   TEXT NOT NULL,
	kind          INTEGER NOT NULL,
	payload       BLOB NOT NULL,
	downloaded_at INTEGER NOT NULL,
	PRIMARY KEY (location_id, kind)
);`

// SQLiteStore persists locations and payload slots in a SQLite database.
// Each slot is a single row, so payload and timestamp change together.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps per-connection pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite %s: %w", path, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveLocation(ctx context.Context, loc weather.TrackedLocation) error {
	var lat, lon sql.NullFloat64
	if loc.Coord != nil {
		lat = sql.NullFloat64{Float64: loc.Coord.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: loc.Coord.Lon, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO locations(id, name, lat, lon, is_gps, is_default, created_at) VALUES(?,?,?,?,?,?,?)`,
		loc.ID, loc.Name, lat, lon, loc.IsGPS, loc.IsDefault, loc.CreatedAt.UnixNano(),
	)
	return err
}

const selectLocation = `SELECT id, name, lat, lon, is_gps, is_default, created_at FROM locations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (weather.TrackedLocation, error) {
	var (
		loc      weather.TrackedLocation
		lat, lon sql.NullFloat64
		created  int64
	)
	if err := row.Scan(&loc.ID, &loc.Name, &lat, &lon, &loc.IsGPS, &loc.IsDefault, &created); err != nil {
		return weather.TrackedLocation{}, err
	}
	if lat.Valid && lon.Valid {
		loc.Coord = &weather.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	loc.CreatedAt = time.Unix(0, created).UTC()
	return loc, nil
}

func (s *SQLiteStore) GetLocation(ctx context.Context, id string) (weather.TrackedLocation, error) {
	loc, err := scanLocation(s.db.QueryRowContext(ctx, selectLocation+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return weather.TrackedLocation{}, weather.ErrLocationNotFound
	}
	return loc, err
}

func (s *SQLiteStore) ListLocations(ctx context.Context) ([]weather.TrackedLocation, error) {
	rows, err := s.db.QueryContext(ctx, selectLocation+` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]weather.TrackedLocation, 0)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// DeleteLocation removes the location and its payloads in one transaction.
func (s *SQLiteStore) DeleteLocation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return weather.ErrLocationNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payloads WHERE location_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetCachedPayload(ctx context.Context, id string, kind weather.DataKind) (weather.Slot, error) {
	var (
		payload []byte
		at      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT p.payload, p.downloaded_at FROM locations l
		 LEFT JOIN payloads p ON p.location_id = l.id AND p.kind = ?
		 WHERE l.id = ?`,
		int(kind), id,
	).Scan(&payload, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Slot{}, weather.ErrLocationNotFound
	}
	if err != nil {
		return weather.Slot{}, err
	}
	if !at.Valid {
		return weather.Slot{}, nil
	}
	return weather.Slot{Payload: payload, DownloadedAt: time.Unix(0, at.Int64).UTC()}, nil
}

// SetCachedPayload writes payload and timestamp as one row. It fails with
// weather.ErrLocationNotFound when the location no longer exists.
func (s *SQLiteStore) SetCachedPayload(ctx context.Context, id string, kind weather.DataKind, payload []byte, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO payloads(location_id, kind, payload, downloaded_at)
		 SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM locations WHERE id = ?)`,
		id, int(kind), payload, at.UnixNano(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return weather.ErrLocationNotFound
	}
	return nil
}

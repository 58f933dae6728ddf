package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/i474232898/weather-tracker/internal/weather/providers"
)

var validate = validator.New()

type AppConfig struct {
	// OpenWeatherAPIKey may be empty; requests then fail with
	// weather.ErrInvalidConfiguration.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string `validate:"required,url"`
	OpenWeatherLang    string

	Locale language.Tag
	Units  weather.UnitSystem

	HTTPTimeout     time.Duration `validate:"gt=0"`
	CacheStaleAfter time.Duration `validate:"gt=0"`
	RefreshInterval time.Duration `validate:"gt=0"`

	// RateLimitRPS <= 0 disables outbound rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int `validate:"gte=1"`

	StoreDriver string `validate:"oneof=memory sqlite"`
	SQLitePath  string `validate:"required_if=StoreDriver sqlite"`

	// Locations seeded from LocationsFile at startup.
	LocationsFile string
	Locations     []SeedLocation `validate:"dive"`

	GeocoderAPIKey string

	Port     string `validate:"required,numeric"`
	LogLevel zerolog.Level
}

// SeedLocation is one entry of the locations file.
type SeedLocation struct {
	Name    string   `yaml:"name"`
	Lat     *float64 `yaml:"lat" validate:"omitempty,min=-90,max=90"`
	Lon     *float64 `yaml:"lon" validate:"omitempty,min=-180,max=180"`
	Default bool     `yaml:"default"`
}

// Coord returns the seed coordinate, or nil when none was given.
func (s SeedLocation) Coord() *weather.Coordinate {
	if s.Lat == nil || s.Lon == nil {
		return nil
	}
	return &weather.Coordinate{Lat: *s.Lat, Lon: *s.Lon}
}

type seedFile struct {
	Locations []SeedLocation `yaml:"locations"`
}

// Load reads configuration from environment with sensible defaults. A .env
// file in the working directory is loaded first when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHER_BASE_URL", providers.DefaultOpenWeatherBaseURL),
		OpenWeatherLang:    os.Getenv("OPENWEATHER_LANG"),
		StoreDriver:        strings.ToLower(getenvDefault("STORE_DRIVER", "memory")),
		SQLitePath:         getenvDefault("SQLITE_PATH", "weather-tracker.db"),
		LocationsFile:      os.Getenv("LOCATIONS_FILE"),
		GeocoderAPIKey:     os.Getenv("GEOCODER_API_KEY"),
		Port:               getenvDefault("PORT", "8080"),
		RateLimitBurst:     getenvInt("RATE_LIMIT_BURST", 5),
	}

	var err error
	locale := getenvDefault("WEATHER_LOCALE", "en-US")
	if cfg.Locale, err = language.Parse(locale); err != nil {
		return nil, fmt.Errorf("invalid WEATHER_LOCALE: %w", err)
	}
	cfg.Units = weather.SystemForLocale(cfg.Locale)
	if units := os.Getenv("WEATHER_UNITS"); units != "" {
		if cfg.Units, err = weather.ParseUnitSystem(units); err != nil {
			return nil, fmt.Errorf("invalid WEATHER_UNITS: %w", err)
		}
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheStaleAfter, err = getenvDuration("CACHE_STALE_AFTER", weather.DefaultStaleAfter); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	if cfg.RateLimitRPS, err = strconv.ParseFloat(getenvDefault("RATE_LIMIT_RPS", "1"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	if cfg.LogLevel, err = zerolog.ParseLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.LocationsFile != "" {
		if cfg.Locations, err = LoadLocations(cfg.LocationsFile); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadLocations reads a YAML seed file of the form
//
//	locations:
//	  - name: Paris
//	    lat: 48.8566
//	    lon: 2.3522
//	    default: true
func LoadLocations(path string) ([]SeedLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	for i, loc := range f.Locations {
		if (loc.Lat == nil) != (loc.Lon == nil) {
			return nil, fmt.Errorf("locations file %s: entry %d needs both lat and lon", path, i)
		}
		if strings.TrimSpace(loc.Name) == "" && loc.Coord() == nil {
			return nil, fmt.Errorf("locations file %s: entry %d has neither name nor coordinate", path, i)
		}
	}
	return f.Locations, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

package providers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// DefaultOpenWeatherBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

var openWeatherEndpoints = [...]string{
	weather.KindCurrent:   "weather",
	weather.KindForecast:  "forecast",
	weather.KindPollution: "air_pollution",
}

// hourlyForecastEndpoint is the hourly forecast variant. Nothing requests it
// yet; the daily view aggregates the 3-hour forecast instead.
const hourlyForecastEndpoint = "forecast/hourly"

// OpenWeatherURLs builds OpenWeatherMap request URLs.
type OpenWeatherURLs struct {
	baseURL string
	apiKey  string
	lang    string
}

// NewOpenWeatherURLs validates baseURL and lang. An empty apiKey is accepted
// here; Build reports it.
func NewOpenWeatherURLs(baseURL, apiKey, lang string) (*OpenWeatherURLs, error) {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", weather.ErrInvalidConfiguration, baseURL, err)
	}

	code, err := providerLang(lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrInvalidConfiguration, err)
	}

	return &OpenWeatherURLs{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		lang:    code,
	}, nil
}

// regionalLangs are the languages the provider distinguishes by region
// (zh_cn, zh_tw, pt_br).
var regionalLangs = map[string]bool{"zh": true, "pt": true}

// providerLang maps a BCP 47 tag (underscores allowed) to the provider's
// lang code.
func providerLang(lang string) (string, error) {
	if strings.TrimSpace(lang) == "" {
		return "", nil
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("lang %q: %w", lang, err)
	}
	base, _ := tag.Base()
	code := base.String()
	if region, conf := tag.Region(); regionalLangs[code] && conf == language.Exact {
		code += "_" + strings.ToLower(region.String())
	}
	return code, nil
}

// Build returns the request URL for kind at c.
func (u *OpenWeatherURLs) Build(kind weather.DataKind, c weather.Coordinate) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("no endpoint for %s", kind)
	}
	return u.build(openWeatherEndpoints[kind], c, kind != weather.KindPollution)
}

// BuildHourly returns the hourly forecast URL at c.
func (u *OpenWeatherURLs) BuildHourly(c weather.Coordinate) (string, error) {
	return u.build(hourlyForecastEndpoint, c, true)
}

func (u *OpenWeatherURLs) build(endpoint string, c weather.Coordinate, withLang bool) (string, error) {
	if u.apiKey == "" {
		return "", fmt.Errorf("%w: openweather api key is not configured", weather.ErrInvalidConfiguration)
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	values.Set("appid", u.apiKey)
	if withLang && u.lang != "" {
		values.Set("lang", u.lang)
	}

	return fmt.Sprintf("%s/%s?%s", u.baseURL, endpoint, values.Encode()), nil
}

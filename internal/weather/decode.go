package weather

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report payload field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type rawCoord struct {
	Lon *float64 `json:"lon" validate:"required,min=-180,max=180"`
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
}

type rawCondition struct {
	ID          *int   `json:"id" validate:"required"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type rawMain struct {
	Temp      *float64 `json:"temp" validate:"required"`
	FeelsLike *float64 `json:"feels_like" validate:"required"`
	TempMin   *float64 `json:"temp_min" validate:"required"`
	TempMax   *float64 `json:"temp_max" validate:"required"`
	Pressure  *float64 `json:"pressure" validate:"required,min=0"`
	Humidity  *float64 `json:"humidity" validate:"required,min=0,max=100"`
	SeaLevel  *float64 `json:"sea_level" validate:"omitempty,min=0"`
	GrndLevel *float64 `json:"grnd_level" validate:"omitempty,min=0"`
}

type rawWind struct {
	Speed *float64 `json:"speed" validate:"required,min=0"`
	Deg   *float64 `json:"deg" validate:"required,min=0,max=360"`
	Gust  *float64 `json:"gust" validate:"omitempty,min=0"`
}

type rawClouds struct {
	All *float64 `json:"all" validate:"required,min=0,max=100"`
}

type rawPrecip struct {
	OneHour    *float64 `json:"1h" validate:"omitempty,min=0"`
	ThreeHours *float64 `json:"3h" validate:"omitempty,min=0"`
}

type rawSys struct {
	Country string `json:"country"`
	Sunrise *int64 `json:"sunrise"`
	Sunset  *int64 `json:"sunset"`
}

type rawCurrent struct {
	Coord      *rawCoord      `json:"coord" validate:"required"`
	Weather    []rawCondition `json:"weather" validate:"required,dive"`
	Main       *rawMain       `json:"main" validate:"required"`
	Wind       *rawWind       `json:"wind" validate:"required"`
	Clouds     *rawClouds     `json:"clouds" validate:"required"`
	Rain       *rawPrecip     `json:"rain"`
	Snow       *rawPrecip     `json:"snow"`
	Visibility *float64       `json:"visibility" validate:"omitempty,min=0"`
	Dt         *int64         `json:"dt"`
	Sys        *rawSys        `json:"sys" validate:"required"`
}

type rawForecastItem struct {
	Dt      *int64         `json:"dt" validate:"required"`
	Main    *rawMain       `json:"main" validate:"required"`
	Weather []rawCondition `json:"weather" validate:"required,dive"`
	Wind    *rawWind       `json:"wind" validate:"required"`
	Clouds  *rawClouds     `json:"clouds" validate:"required"`
	Rain    *rawPrecip     `json:"rain"`
	Snow    *rawPrecip     `json:"snow"`
	Pop     *float64       `json:"pop" validate:"omitempty,min=0,max=1"`
	DtTxt   string         `json:"dt_txt"`
}

type rawCity struct {
	Coord   *rawCoord `json:"coord" validate:"required"`
	Sunrise *int64    `json:"sunrise"`
	Sunset  *int64    `json:"sunset"`
}

type rawForecast struct {
	List []rawForecastItem `json:"list" validate:"required,dive"`
	City *rawCity          `json:"city" validate:"required"`
}

type rawAirQuality struct {
	AQI *int `json:"aqi" validate:"required"`
}

type rawPollutionItem struct {
	Dt         *int64             `json:"dt" validate:"required"`
	Main       *rawAirQuality     `json:"main" validate:"required"`
	Components map[string]float64 `json:"components" validate:"required,dive,min=0"`
}

type rawPollution struct {
	List []rawPollutionItem `json:"list" validate:"required,min=1,dive"`
}

// Decode dispatches raw to the decoder for kind.
func Decode(kind DataKind, raw []byte, sys UnitSystem) (Record, error) {
	switch kind {
	case KindCurrent:
		return DecodeCurrent(raw, sys)
	case KindForecast:
		return DecodeForecast(raw, sys)
	case KindPollution:
		return DecodePollution(raw, sys)
	default:
		panic("weather: decode of invalid kind " + kind.String())
	}
}

func unmarshalValid(kind DataKind, raw []byte, dst any) error {
	if len(raw) == 0 {
		return &DecodeError{Kind: kind, Reason: "empty payload"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Kind: kind, Reason: "invalid json", Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		return &DecodeError{Kind: kind, Reason: "schema mismatch", Err: err}
	}
	return nil
}

// normalizer converts provider values into the display system and records
// the first non-finite result.
type normalizer struct {
	kind DataKind
	sys  UnitSystem
	err  error
}

func (n *normalizer) measure(field string, v float64, from, to Unit) Measurement {
	m := Measurement{Value: Convert(v, from, to), Unit: to}
	if n.err == nil && (math.IsNaN(m.Value) || math.IsInf(m.Value, 0)) {
		n.err = &DecodeError{Kind: n.kind, Reason: field + " is not finite"}
	}
	return m
}

func (n *normalizer) temperature(field string, v float64) Measurement {
	return n.measure(field, v, ProviderUnits.Temperature, n.sys.Temperature)
}

func (n *normalizer) pressure(field string, v float64) Measurement {
	return n.measure(field, v, ProviderUnits.Pressure, n.sys.Pressure)
}

// fraction maps a 0-100 percentage to 0-1.
func (n *normalizer) fraction(field string, v float64) float64 {
	f := v / 100
	if n.err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		n.err = &DecodeError{Kind: n.kind, Reason: field + " is not finite"}
	}
	return f
}

func (n *normalizer) wind(w *rawWind) Wind {
	out := Wind{
		Speed:     n.measure("wind.speed", *w.Speed, ProviderUnits.Speed, n.sys.Speed),
		Direction: *w.Deg,
	}
	if w.Gust != nil {
		g := n.measure("wind.gust", *w.Gust, ProviderUnits.Speed, n.sys.Speed)
		out.Gust = &g
	}
	return out
}

// precip turns an accumulation into an hourly rate. The 1h figure wins over
// the 3h one.
func (n *normalizer) precip(field string, p *rawPrecip) *Measurement {
	if p == nil {
		return nil
	}
	var rate float64
	switch {
	case p.OneHour != nil:
		rate = *p.OneHour
	case p.ThreeHours != nil:
		rate = *p.ThreeHours / 3
	default:
		return nil
	}
	m := n.measure(field, rate, ProviderUnits.Precipitation, n.sys.Precipitation)
	return &m
}

func conditions(raw []rawCondition) []Condition {
	out := make([]Condition, 0, len(raw))
	for _, c := range raw {
		out = append(out, Classify(*c.ID))
	}
	return out
}

func unixTime(v *int64) time.Time {
	if v == nil {
		return time.Time{}
	}
	return time.Unix(*v, 0).UTC()
}

// DecodeCurrent normalizes a current-conditions payload.
func DecodeCurrent(raw []byte, sys UnitSystem) (CurrentConditions, error) {
	var p rawCurrent
	if err := unmarshalValid(KindCurrent, raw, &p); err != nil {
		return CurrentConditions{}, err
	}

	n := &normalizer{kind: KindCurrent, sys: sys}
	seaLevel, grndLevel := *p.Main.Pressure, *p.Main.Pressure
	if p.Main.SeaLevel != nil {
		seaLevel = *p.Main.SeaLevel
	}
	if p.Main.GrndLevel != nil {
		grndLevel = *p.Main.GrndLevel
	}

	cc := CurrentConditions{
		Timestamp:   unixTime(p.Dt),
		Coord:       Coordinate{Lat: *p.Coord.Lat, Lon: *p.Coord.Lon},
		Temperature: n.temperature("main.temp", *p.Main.Temp),
		FeelsLike:   n.temperature("main.feels_like", *p.Main.FeelsLike),
		TempMin:     n.temperature("main.temp_min", *p.Main.TempMin),
		TempMax:     n.temperature("main.temp_max", *p.Main.TempMax),
		Humidity:    n.fraction("main.humidity", *p.Main.Humidity),
		Pressure:    n.pressure("main.pressure", *p.Main.Pressure),
		SeaLevel:    n.pressure("main.sea_level", seaLevel),
		GroundLevel: n.pressure("main.grnd_level", grndLevel),
		Wind:        n.wind(p.Wind),
		Clouds:      n.fraction("clouds.all", *p.Clouds.All),
		Rain:        n.precip("rain", p.Rain),
		Snow:        n.precip("snow", p.Snow),
		Country:     p.Sys.Country,
		Sunrise:     unixTime(p.Sys.Sunrise),
		Sunset:      unixTime(p.Sys.Sunset),
		Conditions:  conditions(p.Weather),
	}
	if p.Visibility != nil {
		v := n.measure("visibility", *p.Visibility, ProviderUnits.Distance, sys.Distance)
		cc.Visibility = &v
	}
	if n.err != nil {
		return CurrentConditions{}, n.err
	}
	return cc, nil
}

// DecodeForecast normalizes a forecast payload. Entries come back sorted by
// timestamp; a repeated timestamp keeps its first entry.
func DecodeForecast(raw []byte, sys UnitSystem) (ForecastSeries, error) {
	var p rawForecast
	if err := unmarshalValid(KindForecast, raw, &p); err != nil {
		return ForecastSeries{}, err
	}

	n := &normalizer{kind: KindForecast, sys: sys}
	series := ForecastSeries{
		Coord:   Coordinate{Lat: *p.City.Coord.Lat, Lon: *p.City.Coord.Lon},
		Sunrise: unixTime(p.City.Sunrise),
		Sunset:  unixTime(p.City.Sunset),
		Entries: make([]ForecastEntry, 0, len(p.List)),
	}

	seen := make(map[int64]struct{}, len(p.List))
	for _, item := range p.List {
		if _, dup := seen[*item.Dt]; dup {
			continue
		}
		seen[*item.Dt] = struct{}{}

		entry := ForecastEntry{
			Timestamp:   unixTime(item.Dt),
			Temperature: n.temperature("main.temp", *item.Main.Temp),
			FeelsLike:   n.temperature("main.feels_like", *item.Main.FeelsLike),
			TempMin:     n.temperature("main.temp_min", *item.Main.TempMin),
			TempMax:     n.temperature("main.temp_max", *item.Main.TempMax),
			Humidity:    n.fraction("main.humidity", *item.Main.Humidity),
			Pressure:    n.pressure("main.pressure", *item.Main.Pressure),
			Wind:        n.wind(item.Wind),
			Clouds:      n.fraction("clouds.all", *item.Clouds.All),
			Rain:        n.precip("rain", item.Rain),
			Snow:        n.precip("snow", item.Snow),
			Conditions:  conditions(item.Weather),
		}
		if item.Pop != nil {
			entry.Precipitation = *item.Pop
		}
		series.Entries = append(series.Entries, entry)
	}
	if n.err != nil {
		return ForecastSeries{}, n.err
	}

	sort.SliceStable(series.Entries, func(i, j int) bool {
		return series.Entries[i].Timestamp.Before(series.Entries[j].Timestamp)
	})
	return series, nil
}

// DecodePollution normalizes the first sample of an air pollution payload.
func DecodePollution(raw []byte, sys UnitSystem) (PollutionReading, error) {
	var p rawPollution
	if err := unmarshalValid(KindPollution, raw, &p); err != nil {
		return PollutionReading{}, err
	}

	n := &normalizer{kind: KindPollution, sys: sys}
	item := p.List[0]
	reading := PollutionReading{
		Timestamp:  unixTime(item.Dt),
		Index:      NewAQI(*item.Main.AQI),
		Components: make(map[Pollutant]Measurement, len(item.Components)),
	}
	for name, v := range item.Components {
		reading.Components[Pollutant(name)] = n.measure("components."+name, v, ProviderUnits.Concentration, sys.Concentration)
	}
	if n.err != nil {
		return PollutionReading{}, n.err
	}
	return reading, nil
}

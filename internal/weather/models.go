package weather

import (
	"fmt"
	"strconv"
	"time"
)

// DataKind identifies one of the three independently cached provider resources.
type DataKind int

const (
	KindCurrent DataKind = iota
	KindForecast
	KindPollution

	kindCount
)

// Kinds lists every DataKind in slot order.
var Kinds = [kindCount]DataKind{KindCurrent, KindForecast, KindPollution}

func (k DataKind) String() string {
	switch k {
	case KindCurrent:
		return "current"
	case KindForecast:
		return "forecast"
	case KindPollution:
		return "pollution"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is one of the defined kinds.
func (k DataKind) Valid() bool {
	return k >= KindCurrent && k < kindCount
}

// ParseDataKind is the inverse of DataKind.String.
func ParseDataKind(s string) (DataKind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown data kind %q", s)
}

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// TrackedLocation is a place the user follows. Its cached payloads are held by
// the Store under the same ID and go away with it.
type TrackedLocation struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Coord     *Coordinate `json:"coord,omitempty"`
	IsGPS     bool        `json:"isGps"`
	IsDefault bool        `json:"isDefault"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Slot is one cached payload and the instant it was downloaded. The two are
// always written together.
type Slot struct {
	Payload      []byte    `json:"-"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Empty reports whether nothing was ever cached in the slot.
func (s Slot) Empty() bool {
	return len(s.Payload) == 0
}

// Record is a decoded payload. It is implemented by CurrentConditions,
// ForecastSeries and PollutionReading only.
type Record interface {
	Kind() DataKind
}

// Wind describes wind speed, direction in degrees and an optional gust.
type Wind struct {
	Speed     Measurement  `json:"speed"`
	Direction float64      `json:"direction"`
	Gust      *Measurement `json:"gust,omitempty"`
}

// CurrentConditions is a normalized current-conditions snapshot.
type CurrentConditions struct {
	Timestamp   time.Time    `json:"timestamp"`
	Coord       Coordinate   `json:"coord"`
	Temperature Measurement  `json:"temperature"`
	FeelsLike   Measurement  `json:"feelsLike"`
	TempMin     Measurement  `json:"tempMin"`
	TempMax     Measurement  `json:"tempMax"`
	Humidity    float64      `json:"humidity"` // 0-1
	Pressure    Measurement  `json:"pressure"`
	SeaLevel    Measurement  `json:"seaLevel"`
	GroundLevel Measurement  `json:"groundLevel"`
	Wind        Wind         `json:"wind"`
	Clouds      float64      `json:"clouds"` // 0-1
	Rain        *Measurement `json:"rain,omitempty"`
	Snow        *Measurement `json:"snow,omitempty"`
	Visibility  *Measurement `json:"visibility,omitempty"`
	Country     string       `json:"country,omitempty"`
	Sunrise     time.Time    `json:"sunrise"`
	Sunset      time.Time    `json:"sunset"`
	Conditions  []Condition  `json:"conditions"`
}

func (CurrentConditions) Kind() DataKind { return KindCurrent }

// ForecastEntry is one provider time step.
type ForecastEntry struct {
	Timestamp     time.Time    `json:"timestamp"`
	Temperature   Measurement  `json:"temperature"`
	FeelsLike     Measurement  `json:"feelsLike"`
	TempMin       Measurement  `json:"tempMin"`
	TempMax       Measurement  `json:"tempMax"`
	Humidity      float64      `json:"humidity"`
	Pressure      Measurement  `json:"pressure"`
	Wind          Wind         `json:"wind"`
	Clouds        float64      `json:"clouds"`
	Rain          *Measurement `json:"rain,omitempty"`
	Snow          *Measurement `json:"snow,omitempty"`
	Precipitation float64      `json:"precipitationProbability"` // 0-1
	Conditions    []Condition  `json:"conditions"`
}

// ForecastSeries holds forecast entries ordered by timestamp. No two entries
// share a timestamp.
type ForecastSeries struct {
	Coord   Coordinate      `json:"coord"`
	Sunrise time.Time       `json:"sunrise"`
	Sunset  time.Time       `json:"sunset"`
	Entries []ForecastEntry `json:"entries"`
}

func (ForecastSeries) Kind() DataKind { return KindForecast }

// Pollutant identifies a measured air pollutant.
type Pollutant string

const (
	PollutantCO   Pollutant = "co"
	PollutantNO   Pollutant = "no"
	PollutantNO2  Pollutant = "no2"
	PollutantO3   Pollutant = "o3"
	PollutantSO2  Pollutant = "so2"
	PollutantPM25 Pollutant = "pm2_5"
	PollutantPM10 Pollutant = "pm10"
	PollutantNH3  Pollutant = "nh3"
)

// AQI is the provider's 1-5 air quality index.
type AQI int

const (
	AQIUnknown  AQI = 0
	AQIGood     AQI = 1
	AQIFair     AQI = 2
	AQIModerate AQI = 3
	AQIPoor     AQI = 4
	AQIVeryPoor AQI = 5
)

// NewAQI maps a raw index to a category; anything outside 1-5 is AQIUnknown.
func NewAQI(v int) AQI {
	if v < int(AQIGood) || v > int(AQIVeryPoor) {
		return AQIUnknown
	}
	return AQI(v)
}

func (a AQI) String() string {
	switch a {
	case AQIGood:
		return "good"
	case AQIFair:
		return "fair"
	case AQIModerate:
		return "moderate"
	case AQIPoor:
		return "poor"
	case AQIVeryPoor:
		return "very poor"
	default:
		return "unknown"
	}
}

// PollutionReading is an air quality sample.
type PollutionReading struct {
	Timestamp  time.Time                 `json:"timestamp"`
	Index      AQI                       `json:"aqi"`
	Components map[Pollutant]Measurement `json:"components"`
}

func (PollutionReading) Kind() DataKind { return KindPollution }

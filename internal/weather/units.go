package weather

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Unit is a physical measurement unit.
type Unit string

const (
	Kelvin     Unit = "K"
	Celsius    Unit = "°C"
	Fahrenheit Unit = "°F"

	Hectopascal          Unit = "hPa"
	Kilopascal           Unit = "kPa"
	InchesOfMercury      Unit = "inHg"
	MillimetersOfMercury Unit = "mmHg"

	MetersPerSecond   Unit = "m/s"
	KilometersPerHour Unit = "km/h"
	MilesPerHour      Unit = "mph"
	Knots             Unit = "kn"

	MillimetersPerHour Unit = "mm/h"
	InchesPerHour      Unit = "in/h"

	Meters     Unit = "m"
	Kilometers Unit = "km"
	Miles      Unit = "mi"

	MicrogramsPerCubicMeter Unit = "µg/m³"
)

type dimension int

const (
	dimTemperature dimension = iota + 1
	dimPressure
	dimSpeed
	dimPrecipitationRate
	dimLength
	dimConcentration
)

// unitDef expresses a unit as base = value*scale + offset. Base units are
// Kelvin, hPa, m/s, mm/h, metres and µg/m³.
type unitDef struct {
	dim    dimension
	scale  float64
	offset float64
}

var units = map[Unit]unitDef{
	Kelvin:     {dimTemperature, 1, 0},
	Celsius:    {dimTemperature, 1, 273.15},
	Fahrenheit: {dimTemperature, 5.0 / 9.0, 273.15 - 32*5.0/9.0},

	Hectopascal:          {dimPressure, 1, 0},
	Kilopascal:           {dimPressure, 10, 0},
	InchesOfMercury:      {dimPressure, 33.8638866667, 0},
	MillimetersOfMercury: {dimPressure, 1.33322387415, 0},

	MetersPerSecond:   {dimSpeed, 1, 0},
	KilometersPerHour: {dimSpeed, 1 / 3.6, 0},
	MilesPerHour:      {dimSpeed, 0.44704, 0},
	Knots:             {dimSpeed, 1852.0 / 3600.0, 0},

	MillimetersPerHour: {dimPrecipitationRate, 1, 0},
	InchesPerHour:      {dimPrecipitationRate, 25.4, 0},

	Meters:     {dimLength, 1, 0},
	Kilometers: {dimLength, 1000, 0},
	Miles:      {dimLength, 1609.344, 0},

	MicrogramsPerCubicMeter: {dimConcentration, 1, 0},
}

func lookupUnit(u Unit) unitDef {
	def, ok := units[u]
	if !ok {
		panic(fmt.Sprintf("weather: unknown unit %q", u))
	}
	return def
}

// Convert converts v from one unit to another of the same dimension. Unknown
// units and cross-dimension conversions are programming errors and panic.
func Convert(v float64, from, to Unit) float64 {
	if from == to {
		lookupUnit(from)
		return v
	}
	f, t := lookupUnit(from), lookupUnit(to)
	if f.dim != t.dim {
		panic(fmt.Sprintf("weather: cannot convert %s to %s", from, to))
	}
	base := v*f.scale + f.offset
	return (base - t.offset) / t.scale
}

// Measurement is a value tagged with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// In returns m expressed in u.
func (m Measurement) In(u Unit) Measurement {
	return Measurement{Value: Convert(m.Value, m.Unit, u), Unit: u}
}

func (m Measurement) String() string {
	return fmt.Sprintf("%.1f %s", m.Value, m.Unit)
}

// UnitSystem selects the display unit for each dimension.
type UnitSystem struct {
	Name          string `json:"name"`
	Temperature   Unit   `json:"temperature"`
	Pressure      Unit   `json:"pressure"`
	Speed         Unit   `json:"speed"`
	Precipitation Unit   `json:"precipitation"`
	Distance      Unit   `json:"distance"`
	Concentration Unit   `json:"concentration"`
}

var (
	// Metric is the SI-flavoured display system.
	Metric = UnitSystem{
		Name:          "metric",
		Temperature:   Celsius,
		Pressure:      Hectopascal,
		Speed:         MetersPerSecond,
		Precipitation: MillimetersPerHour,
		Distance:      Kilometers,
		Concentration: MicrogramsPerCubicMeter,
	}

	Imperial = UnitSystem{
		Name:          "imperial",
		Temperature:   Fahrenheit,
		Pressure:      InchesOfMercury,
		Speed:         MilesPerHour,
		Precipitation: InchesPerHour,
		Distance:      Miles,
		Concentration: MicrogramsPerCubicMeter,
	}

	// Standard keeps provider-native units.
	Standard = UnitSystem{
		Name:          "standard",
		Temperature:   Kelvin,
		Pressure:      Hectopascal,
		Speed:         MetersPerSecond,
		Precipitation: MillimetersPerHour,
		Distance:      Meters,
		Concentration: MicrogramsPerCubicMeter,
	}
)

// ProviderUnits are the units the provider encodes its payloads in.
var ProviderUnits = Standard

// ParseUnitSystem resolves a system by name.
func ParseUnitSystem(name string) (UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "metric":
		return Metric, nil
	case "imperial":
		return Imperial, nil
	case "standard":
		return Standard, nil
	default:
		return UnitSystem{}, fmt.Errorf("unknown unit system %q", name)
	}
}

// imperialRegions still measure in imperial units.
var imperialRegions = map[string]bool{"US": true, "LR": true, "MM": true}

// SystemForLocale picks the display unit system for a locale.
func SystemForLocale(tag language.Tag) UnitSystem {
	region, _ := tag.Region()
	if imperialRegions[region.String()] {
		return Imperial
	}
	return Metric
}

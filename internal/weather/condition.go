package weather

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the semantic class of a provider condition code.
type Category string

const (
	CategoryUnknown      Category = "unknown"
	CategoryClear        Category = "clear"
	CategoryThunderstorm Category = "thunderstorm"
	CategoryDrizzle      Category = "drizzle"
	CategoryRain         Category = "rain"
	CategorySnow         Category = "snow"
	CategoryAtmosphere   Category = "atmosphere"
	CategoryClouds       Category = "clouds"
)

// Bucket refines a Category by intensity, variant or cloud density.
type Bucket string

const (
	BucketNone          Bucket = ""
	BucketLight         Bucket = "light"
	BucketModerate      Bucket = "moderate"
	BucketHeavy         Bucket = "heavy"
	BucketVeryHeavy     Bucket = "veryHeavy"
	BucketExtreme       Bucket = "extreme"
	BucketFreezing      Bucket = "freezing"
	BucketRagged        Bucket = "ragged"
	BucketLightShower   Bucket = "lightShower"
	BucketShower        Bucket = "shower"
	BucketHeavyShower   Bucket = "heavyShower"
	BucketRaggedShower  Bucket = "raggedShower"
	BucketSleet         Bucket = "sleet"
	BucketLightRainSnow Bucket = "lightRainAndSnow"
	BucketRainSnow      Bucket = "rainAndSnow"

	BucketMist    Bucket = "mist"
	BucketSmoke   Bucket = "smoke"
	BucketHaze    Bucket = "haze"
	BucketDust    Bucket = "dust"
	BucketFog     Bucket = "fog"
	BucketSand    Bucket = "sand"
	BucketAsh     Bucket = "ash"
	BucketSquall  Bucket = "squall"
	BucketTornado Bucket = "tornado"

	BucketFew       Bucket = "few"
	BucketScattered Bucket = "scattered"
	BucketBroken    Bucket = "broken"
	BucketOvercast  Bucket = "overcast"
)

// Condition is a classified provider condition code.
type Condition struct {
	Code     int      `json:"code"`
	Category Category `json:"category"`
	Bucket   Bucket   `json:"bucket,omitempty"`
	Label    string   `json:"label"`
}

// Title returns the label in title case for display.
func (c Condition) Title() string {
	return cases.Title(language.English).String(c.Label)
}

type codeInfo struct {
	bucket Bucket
	label  string
}

var knownCodes = map[int]codeInfo{
	200: {BucketLight, "thunderstorm with light rain"},
	201: {BucketModerate, "thunderstorm with rain"},
	202: {BucketHeavy, "thunderstorm with heavy rain"},
	210: {BucketLight, "light thunderstorm"},
	211: {BucketModerate, "thunderstorm"},
	212: {BucketHeavy, "heavy thunderstorm"},
	221: {BucketRagged, "ragged thunderstorm"},
	230: {BucketLight, "thunderstorm with light drizzle"},
	231: {BucketModerate, "thunderstorm with drizzle"},
	232: {BucketHeavy, "thunderstorm with heavy drizzle"},

	300: {BucketLight, "light intensity drizzle"},
	301: {BucketModerate, "drizzle"},
	302: {BucketHeavy, "heavy intensity drizzle"},
	310: {BucketLight, "light intensity drizzle rain"},
	311: {BucketModerate, "drizzle rain"},
	312: {BucketHeavy, "heavy intensity drizzle rain"},
	313: {BucketShower, "shower rain and drizzle"},
	314: {BucketHeavyShower, "heavy shower rain and drizzle"},
	321: {BucketShower, "shower drizzle"},

	500: {BucketLight, "light rain"},
	501: {BucketModerate, "moderate rain"},
	502: {BucketHeavy, "heavy intensity rain"},
	503: {BucketVeryHeavy, "very heavy rain"},
	504: {BucketExtreme, "extreme rain"},
	511: {BucketFreezing, "freezing rain"},
	520: {BucketLightShower, "light intensity shower rain"},
	521: {BucketShower, "shower rain"},
	522: {BucketHeavyShower, "heavy intensity shower rain"},
	531: {BucketRaggedShower, "ragged shower rain"},

	600: {BucketLight, "light snow"},
	601: {BucketModerate, "snow"},
	602: {BucketHeavy, "heavy snow"},
	611: {BucketSleet, "sleet"},
	612: {BucketLightShower, "light shower sleet"},
	613: {BucketShower, "shower sleet"},
	615: {BucketLightRainSnow, "light rain and snow"},
	616: {BucketRainSnow, "rain and snow"},
	620: {BucketLightShower, "light shower snow"},
	621: {BucketShower, "shower snow"},
	622: {BucketHeavyShower, "heavy shower snow"},

	701: {BucketMist, "mist"},
	711: {BucketSmoke, "smoke"},
	721: {BucketHaze, "haze"},
	731: {BucketDust, "sand/dust whirls"},
	741: {BucketFog, "fog"},
	751: {BucketSand, "sand"},
	761: {BucketDust, "dust"},
	762: {BucketAsh, "volcanic ash"},
	771: {BucketSquall, "squalls"},
	781: {BucketTornado, "tornado"},

	800: {BucketNone, "clear sky"},

	801: {BucketFew, "few clouds"},
	802: {BucketScattered, "scattered clouds"},
	803: {BucketBroken, "broken clouds"},
	804: {BucketOvercast, "overcast clouds"},
}

// CategoryOf maps a code to its category by numeric range. Codes outside every
// range are CategoryUnknown.
func CategoryOf(code int) Category {
	switch {
	case code >= 200 && code <= 299:
		return CategoryThunderstorm
	case code >= 300 && code <= 399:
		return CategoryDrizzle
	case code >= 500 && code <= 599:
		return CategoryRain
	case code >= 600 && code <= 699:
		return CategorySnow
	case code >= 700 && code <= 799:
		return CategoryAtmosphere
	case code == 800:
		return CategoryClear
	case code >= 801 && code <= 804:
		return CategoryClouds
	default:
		return CategoryUnknown
	}
}

// Classify maps a provider code to a Condition. Codes inside a category range
// but absent from the table keep the category with no bucket.
func Classify(code int) Condition {
	c := Condition{Code: code, Category: CategoryOf(code)}
	if c.Category == CategoryUnknown {
		c.Label = "unknown"
		return c
	}
	if info, ok := knownCodes[code]; ok {
		c.Bucket = info.bucket
		c.Label = info.label
		return c
	}
	c.Label = string(c.Category)
	return c
}

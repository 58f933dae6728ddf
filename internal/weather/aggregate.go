package weather

import (
	"sort"
	"time"
)

// HourWindow is how far, in hours, a sample's hour of day may sit from the
// reference hour and still represent its day.
const HourWindow = 3

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

func (d civilDate) after(o civilDate) bool {
	if d.year != o.year {
		return d.year > o.year
	}
	if d.month != o.month {
		return d.month > o.month
	}
	return d.day > o.day
}

// FiveDay reduces a forecast series to at most one entry per future calendar
// day. Days are taken in ref's location; an entry qualifies when its hour of
// day is within HourWindow of ref's hour, without wrapping around midnight.
// The first qualifying entry of a day wins. The result is sorted by timestamp
// and may be shorter than five entries.
func FiveDay(series ForecastSeries, ref time.Time) []ForecastEntry {
	loc := ref.Location()
	today := dateOf(ref)
	refHour := ref.Hour()

	claimed := make(map[civilDate]struct{})
	out := make([]ForecastEntry, 0, 5)
	for _, e := range series.Entries {
		local := e.Timestamp.In(loc)
		day := dateOf(local)
		if !day.after(today) {
			continue
		}
		diff := refHour - local.Hour()
		if diff < 0 {
			diff = -diff
		}
		if diff > HourWindow {
			continue
		}
		if _, ok := claimed[day]; ok {
			continue
		}
		claimed[day] = struct{}{}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

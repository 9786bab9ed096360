package weather

import (
	"math"
	"strings"
	"time"
)

const msToKmh = 3.6

// Reshape flattens forecast entries into CSV records. units is the unit
// system the entries were requested in and decides the Celsius conversion.
func Reshape(entries []Entry, units string) []Record {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		r := Record{
			Speed:     KmPerHour(e.Wind.Speed),
			Direction: int(math.Round(e.Wind.Deg)),
			TempMin:   int(math.Trunc(Celsius(e.Main.TempMin, units))),
			TempMax:   int(math.Trunc(Celsius(e.Main.TempMax, units))),
			Date:      FormatTimestamp(e.DtTxt),
		}
		if e.Wind.Gust != nil {
			r.Gust = OptionalInt{Value: KmPerHour(*e.Wind.Gust), Valid: true}
		}
		if len(e.Weather) > 0 {
			r.Description = e.Weather[0].Description
		}
		records = append(records, r)
	}
	return records
}

// KmPerHour converts m/s to km/h rounding half to even.
func KmPerHour(ms float64) int {
	return int(math.RoundToEven(ms * msToKmh))
}

func Celsius(v float64, units string) float64 {
	switch strings.ToLower(units) {
	case "standard":
		return v - 273.15
	case "imperial":
		return (v - 32) * 5 / 9
	default:
		return v
	}
}

const apiTimestamp = "2006-01-02 15:04:05"

// FormatTimestamp turns "2023-03-27 21:00:00" into "2023/03/27 21H00".
func FormatTimestamp(s string) string {
	if t, err := time.Parse(apiTimestamp, s); err == nil {
		return t.Format("2006/01/02 15H04")
	}
	if strings.Count(s, ":") == 2 {
		s = s[:strings.LastIndex(s, ":")]
	}
	return strings.NewReplacer(":", "H", "-", "/").Replace(s)
}

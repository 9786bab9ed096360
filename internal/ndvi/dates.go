package ndvi

import "time"

// LastDays returns the n calendar days ending on the day of now, oldest
// first, as UTC midnights.
func LastDays(now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = today.AddDate(0, 0, i-(n-1))
	}
	return dates
}

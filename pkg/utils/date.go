package utils

import (
	"log"
	"time"
)

// DateLayout is the calendar date format used across stores and providers.
const DateLayout = "2006-01-02"

// TimeNowEastern returns the current time on the exchange clock (US/Eastern).
func TimeNowEastern() time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return time.Now().In(loc)
}

// NextTradingDay returns the next weekday after t. Exchange holidays are not
// accounted for; a preview run on a holiday eve simply finds an empty calendar.
func NextTradingDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

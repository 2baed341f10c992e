package markethours

import (
	"log"
	"sync"
	"time"
)

// Full-day NYSE closures. Early closes are treated as regular sessions.
// Extend the table before the last year runs out; CalendarCovers reports it.
var nyseHolidays = []struct {
	year  int
	month time.Month
	day   int
}{
	{2026, time.January, 1},    // New Year's Day
	{2026, time.January, 19},   // Martin Luther King Jr. Day
	{2026, time.February, 16},  // Washington's Birthday
	{2026, time.April, 3},      // Good Friday
	{2026, time.May, 25},       // Memorial Day
	{2026, time.June, 19},      // Juneteenth
	{2026, time.July, 3},       // Independence Day (observed)
	{2026, time.September, 7},  // Labor Day
	{2026, time.November, 26},  // Thanksgiving
	{2026, time.December, 25},  // Christmas
	{2027, time.January, 1},    // New Year's Day
	{2027, time.January, 18},   // Martin Luther King Jr. Day
	{2027, time.February, 15},  // Washington's Birthday
	{2027, time.March, 26},     // Good Friday
	{2027, time.May, 31},       // Memorial Day
	{2027, time.June, 18},      // Juneteenth (observed)
	{2027, time.July, 5},       // Independence Day (observed)
	{2027, time.September, 6},  // Labor Day
	{2027, time.November, 25},  // Thanksgiving
	{2027, time.December, 24},  // Christmas (observed)
}

var (
	holidaySet  map[string]bool
	firstYear   int
	lastYear    int
	warnMu      sync.Mutex
	warnedYears = map[int]bool{}
)

func init() {
	holidaySet = make(map[string]bool, len(nyseHolidays))
	for _, h := range nyseHolidays {
		holidaySet[dateKey(h.year, h.month, h.day)] = true
		if firstYear == 0 || h.year < firstYear {
			firstYear = h.year
		}
		if h.year > lastYear {
			lastYear = h.year
		}
	}
}

// CalendarCovers reports whether the holiday table includes t's year.
// Outside it every weekday counts as a trading day.
func CalendarCovers(t time.Time) bool {
	y := t.In(NewYork).Year()
	return y >= firstYear && y <= lastYear
}

// LastCalendarYear is the final year with known holidays.
func LastCalendarYear() int { return lastYear }

// IsHoliday returns true if the date (in exchange time) is an NYSE holiday.
// The first lookup in a year outside the table logs a warning.
func IsHoliday(t time.Time) bool {
	et := t.In(NewYork)
	if !CalendarCovers(et) {
		warnUncovered(et.Year())
	}
	return holidaySet[dateKey(et.Year(), et.Month(), et.Day())]
}

func warnUncovered(year int) {
	warnMu.Lock()
	defer warnMu.Unlock()
	if warnedYears[year] {
		return
	}
	warnedYears[year] = true
	log.Printf("[markethours] WARNING: no NYSE holiday calendar for %d (table covers %d-%d); holidays will be treated as trading days",
		year, firstYear, lastYear)
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, NewYork).Format("2006-01-02")
}

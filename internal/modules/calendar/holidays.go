package calendar

import "time"

// fixedDate is a holiday falling on the same calendar day every year.
type fixedDate struct {
	Month time.Month
	Day   int
	// ObserveOnWeekday moves a weekend holiday to Friday or Monday.
	ObserveOnWeekday bool
}

// nthWeekday is a holiday on the nth weekday of a month. N = -1 means the last.
type nthWeekday struct {
	Month   time.Month
	Weekday time.Weekday
	N       int
}

// holidayRules are the recurring closures of an exchange. Lunar holidays
// cannot be expressed here and come from configured date lists.
type holidayRules struct {
	Fixed        []fixedDate
	NthWeekdays  []nthWeekday
	EasterOffset []int // days from Easter Sunday
}

func (r holidayRules) forYear(year int) []time.Time {
	days := make([]time.Time, 0, len(r.Fixed)+len(r.NthWeekdays)+len(r.EasterOffset))

	for _, h := range r.Fixed {
		d := time.Date(year, h.Month, h.Day, 0, 0, 0, 0, time.UTC)
		if h.ObserveOnWeekday {
			d = observeOnWeekday(d)
		}
		days = append(days, d)
	}
	for _, h := range r.NthWeekdays {
		if h.N == -1 {
			days = append(days, lastWeekday(year, h.Month, h.Weekday))
		} else {
			days = append(days, nthWeekdayOf(year, h.Month, h.Weekday, h.N))
		}
	}
	if len(r.EasterOffset) > 0 {
		easter := easterSunday(year)
		for _, offset := range r.EasterOffset {
			days = append(days, easter.AddDate(0, 0, offset))
		}
	}
	return days
}

// easterSunday computes Western Easter with the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func nthWeekdayOf(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(weekday - first.Weekday())
	if offset < 0 {
		offset += 7
	}
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	back := int(last.Weekday() - weekday)
	if back < 0 {
		back += 7
	}
	return last.AddDate(0, 0, -back)
}

// observeOnWeekday moves Saturday to Friday and Sunday to Monday.
func observeOnWeekday(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nyseRules are the NYSE full-day closures.
var nyseRules = holidayRules{
	Fixed: []fixedDate{
		{Month: time.January, Day: 1, ObserveOnWeekday: true},
		{Month: time.June, Day: 19, ObserveOnWeekday: true},
		{Month: time.July, Day: 4, ObserveOnWeekday: true},
		{Month: time.December, Day: 25, ObserveOnWeekday: true},
	},
	NthWeekdays: []nthWeekday{
		{Month: time.January, Weekday: time.Monday, N: 3},   // MLK
		{Month: time.February, Weekday: time.Monday, N: 3},  // Presidents
		{Month: time.May, Weekday: time.Monday, N: -1},      // Memorial
		{Month: time.September, Weekday: time.Monday, N: 1}, // Labor
		{Month: time.November, Weekday: time.Thursday, N: 4},
	},
	EasterOffset: []int{-2}, // Good Friday
}

// hkexRules cover the solar-calendar HKEX closures.
var hkexRules = holidayRules{
	Fixed: []fixedDate{
		{Month: time.January, Day: 1},
		{Month: time.May, Day: 1},
		{Month: time.July, Day: 1},
		{Month: time.October, Day: 1},
		{Month: time.December, Day: 25},
		{Month: time.December, Day: 26},
	},
	EasterOffset: []int{-2, 1}, // Good Friday, Easter Monday
}

// sseRules are the closures every SSE/SZSE year shares. The Spring Festival,
// Qingming, Dragon Boat and Mid-Autumn breaks move yearly and are configured.
var sseRules = holidayRules{
	Fixed: []fixedDate{
		{Month: time.January, Day: 1},
		{Month: time.May, Day: 1},
		{Month: time.October, Day: 1},
		{Month: time.October, Day: 2},
		{Month: time.October, Day: 3},
	},
}

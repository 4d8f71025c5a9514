// Package calendar answers trading-session questions for the markets fund
// holdings trade on: mainland China, Hong Kong and the US.
package calendar

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // exchange zones must resolve on minimal hosts
)

// Region identifies a market.
type Region string

const (
	RegionCN Region = "CN"
	RegionHK Region = "HK"
	RegionUS Region = "US"
)

const dateLayout = "2006-01-02"

type clock struct{ hour, minute int }

func (c clock) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

// exchange is the session definition of one region.
type exchange struct {
	name       string
	timezone   string
	open       clock
	close      clock
	lunchStart *clock
	lunchEnd   *clock
	rules      holidayRules
}

var exchanges = map[Region]exchange{
	RegionCN: {
		name:       "SSE",
		timezone:   "Asia/Shanghai",
		open:       clock{9, 30},
		close:      clock{15, 0},
		lunchStart: &clock{11, 30},
		lunchEnd:   &clock{13, 0},
		rules:      sseRules,
	},
	RegionHK: {
		name:       "HKEX",
		timezone:   "Asia/Hong_Kong",
		open:       clock{9, 30},
		close:      clock{16, 0},
		lunchStart: &clock{12, 0},
		lunchEnd:   &clock{13, 0},
		rules:      hkexRules,
	},
	RegionUS: {
		name:     "NYSE",
		timezone: "America/New_York",
		open:     clock{9, 30},
		close:    clock{16, 0},
		rules:    nyseRules,
	},
}

// Calendar decides trading days and session hours. It is safe for
// concurrent use.
type Calendar struct {
	locations map[Region]*time.Location
	extra     map[Region]map[string]bool

	mu    sync.Mutex
	cache map[Region]map[int]map[string]bool
}

// New builds a calendar. extra lists additional closed dates (YYYY-MM-DD)
// per region, typically the lunar holidays of the year.
func New(extra map[Region][]string) (*Calendar, error) {
	c := &Calendar{
		locations: make(map[Region]*time.Location, len(exchanges)),
		extra:     make(map[Region]map[string]bool, len(extra)),
		cache:     make(map[Region]map[int]map[string]bool),
	}

	for region, ex := range exchanges {
		loc, err := time.LoadLocation(ex.timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone for %s: %w", ex.name, err)
		}
		c.locations[region] = loc
	}

	for region, dates := range extra {
		if _, ok := exchanges[region]; !ok {
			return nil, fmt.Errorf("unknown market region %q", region)
		}
		set := make(map[string]bool, len(dates))
		for _, d := range dates {
			if _, err := time.Parse(dateLayout, d); err != nil {
				return nil, fmt.Errorf("invalid %s holiday %q: %w", region, d, err)
			}
			set[d] = true
		}
		c.extra[region] = set
	}

	return c, nil
}

// IsTradingDay reports whether the region's exchange trades on the local
// date of t.
func (c *Calendar) IsTradingDay(region Region, t time.Time) bool {
	loc, ok := c.locations[region]
	if !ok {
		return false
	}
	local := t.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return !c.isHoliday(region, local)
}

// SessionStarted reports whether t falls on a trading day at or after the
// opening bell. It stays true after the close.
func (c *Calendar) SessionStarted(region Region, t time.Time) bool {
	if !c.IsTradingDay(region, t) {
		return false
	}
	local := t.In(c.locations[region])
	return !local.Before(exchanges[region].open.on(local))
}

// IsOpen reports whether the exchange is in continuous trading at t.
// Trading stops at the close and resumes when the lunch break ends.
func (c *Calendar) IsOpen(region Region, t time.Time) bool {
	if !c.SessionStarted(region, t) {
		return false
	}
	ex := exchanges[region]
	local := t.In(c.locations[region])

	if !local.Before(ex.close.on(local)) {
		return false
	}
	if ex.lunchStart != nil && ex.lunchEnd != nil {
		if !local.Before(ex.lunchStart.on(local)) && local.Before(ex.lunchEnd.on(local)) {
			return false
		}
	}
	return true
}

// TradedPreviousDay reports whether region traded on the calendar day before
// day, where day is read in its own location. For a mainland trading day
// this is the overnight US or Hong Kong session that cross-border funds price.
func (c *Calendar) TradedPreviousDay(region Region, day time.Time) bool {
	loc, ok := c.locations[region]
	if !ok {
		return false
	}
	prev := time.Date(day.Year(), day.Month(), day.Day()-1, 12, 0, 0, 0, loc)
	return c.IsTradingDay(region, prev)
}

func (c *Calendar) isHoliday(region Region, local time.Time) bool {
	date := local.Format(dateLayout)
	if c.extra[region][date] {
		return true
	}
	return c.rulesFor(region, local.Year())[date]
}

func (c *Calendar) rulesFor(region Region, year int) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	byYear, ok := c.cache[region]
	if !ok {
		byYear = make(map[int]map[string]bool)
		c.cache[region] = byYear
	}
	if days, ok := byYear[year]; ok {
		return days
	}

	days := make(map[string]bool)
	for _, d := range exchanges[region].rules.forYear(year) {
		days[d.Format(dateLayout)] = true
	}
	byYear[year] = days
	return days
}

package execution

import (
	"time"
)

// exchangeTZ is the exchange-local timezone used for all calendar rules.
const exchangeTZ = "Asia/Shanghai"

// MarketCalendar answers trading-day and session-window questions in
// exchange-local time.
type MarketCalendar struct {
	loc      *time.Location
	holidays map[string]bool // "2006-01-02" -> closed
}

// NewMarketCalendar creates a calendar for the exchange timezone.
func NewMarketCalendar() *MarketCalendar {
	loc, err := time.LoadLocation(exchangeTZ)
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return &MarketCalendar{
		loc: loc,
		holidays: map[string]bool{
			// Exchange closures 2024-2026 per the published holiday
			// schedules; later years are registered via AddHoliday.
			"2024-01-01": true,
			"2024-02-09": true,
			"2024-02-12": true,
			"2024-02-13": true,
			"2024-02-14": true,
			"2024-02-15": true,
			"2024-02-16": true,
			"2024-04-04": true,
			"2024-04-05": true,
			"2024-05-01": true,
			"2024-05-02": true,
			"2024-05-03": true,
			"2024-06-10": true,
			"2024-09-16": true,
			"2024-09-17": true,
			"2024-10-01": true,
			"2024-10-02": true,
			"2024-10-03": true,
			"2024-10-04": true,
			"2024-10-07": true,

			"2025-01-01": true,
			"2025-01-28": true,
			"2025-01-29": true,
			"2025-01-30": true,
			"2025-01-31": true,
			"2025-02-03": true,
			"2025-02-04": true,
			"2025-04-04": true,
			"2025-05-01": true,
			"2025-05-02": true,
			"2025-05-05": true,
			"2025-06-02": true,
			"2025-10-01": true,
			"2025-10-02": true,
			"2025-10-03": true,
			"2025-10-06": true,
			"2025-10-07": true,
			"2025-10-08": true,

			"2026-01-01": true,
			"2026-01-02": true,
			"2026-02-16": true,
			"2026-02-17": true,
			"2026-02-18": true,
			"2026-02-19": true,
			"2026-02-20": true,
			"2026-04-06": true,
			"2026-05-01": true,
			"2026-05-04": true,
			"2026-05-05": true,
			"2026-06-19": true,
			"2026-09-25": true,
			"2026-10-01": true,
			"2026-10-02": true,
			"2026-10-05": true,
			"2026-10-06": true,
			"2026-10-07": true,
		},
	}
}

// Location returns the exchange timezone.
func (c *MarketCalendar) Location() *time.Location {
	return c.loc
}

// AddHoliday registers an extra non-trading date.
func (c *MarketCalendar) AddHoliday(date time.Time) {
	c.holidays[date.In(c.loc).Format("2006-01-02")] = true
}

// IsTradingDay reports whether the date is a weekday and not a holiday.
func (c *MarketCalendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[local.Format("2006-01-02")]
}

// NextTradingDay returns the first trading day strictly after t.
func (c *MarketCalendar) NextTradingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for {
		day = day.AddDate(0, 0, 1)
		if c.IsTradingDay(day) {
			return day
		}
	}
}

// InTradingHours reports whether t falls inside the continuous trading
// sessions (09:30-11:30, 13:00-15:00 exchange time) on a trading day.
func (c *MarketCalendar) InTradingHours(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := minutesIntoDay(t.In(c.loc))
	morning := m >= 9*60+30 && m < 11*60+30
	afternoon := m >= 13*60 && m < 15*60
	return morning || afternoon
}

// InAuctionWindow reports whether t falls inside the pre-open call auction
// (09:15-09:25 exchange time) on a trading day.
func (c *MarketCalendar) InAuctionWindow(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := minutesIntoDay(t.In(c.loc))
	return m >= 9*60+15 && m < 9*60+25
}

// LocalDate truncates t to its exchange-local calendar date.
func (c *MarketCalendar) LocalDate(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

func minutesIntoDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

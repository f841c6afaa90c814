package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
)

// horizonDays bounds every forward scan. A calendar with no working
// time inside a year is treated as unusable rather than silently
// scheduling into closed time.
const horizonDays = 365

// ErrHorizonExhausted is returned when no working time exists within
// horizonDays of the requested instant.
var ErrHorizonExhausted = errors.New("no working time found within calendar horizon")

// Calendar answers working-time membership questions for one machine.
// A nil *Calendar (or one built from a nil MachineCalendar) means the
// machine runs 7x24. The location is the single deployment timezone in
// which all timestamps and "HH:MM" window times are interpreted.
type Calendar struct {
	cal *models.MachineCalendar
	loc *time.Location
}

func New(cal *models.MachineCalendar, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{cal: cal, loc: loc}
}

func (c *Calendar) open() bool {
	return c == nil || c.cal == nil
}

// Location returns the timezone the calendar operates in.
func (c *Calendar) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.Local
	}
	return c.loc
}

// weekdayIndex maps time.Weekday onto the template keying, 0=Monday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// windowsFor resolves the effective windows for the calendar date of t.
// An exception for the date wins even when its window list is empty.
func (c *Calendar) windowsFor(t time.Time) []models.WorkingWindow {
	day := t.Format("2006-01-02")
	for _, ex := range c.cal.WorkExceptions {
		if ex.Date == day {
			return ex.Windows
		}
	}
	return c.cal.WeekTemplate[weekdayIndex(t)]
}

// parseHHMM returns minutes since midnight, or -1 for malformed input.
func parseHHMM(s string) int {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return -1
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return -1
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return -1
	}
	return hh*60 + mm
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func atMinutes(day time.Time, mins int) time.Time {
	return dayStart(day).Add(time.Duration(mins) * time.Minute)
}

// IsWorking reports whether t falls inside a working window of its own
// calendar date. Overnight windows wrap: the instant matches either the
// evening leg (tod >= start) or the early-morning leg (tod <= end).
func (c *Calendar) IsWorking(t time.Time) bool {
	if c.open() {
		return true
	}
	t = t.In(c.loc)
	tod := minutesOfDay(t)
	for _, w := range c.windowsFor(t) {
		start, end := parseHHMM(w.Start), parseHHMM(w.End)
		if start < 0 || end < 0 {
			continue
		}
		if w.EndNextDay {
			if tod >= start || tod <= end {
				return true
			}
			continue
		}
		if tod >= start && tod < end {
			return true
		}
	}
	return false
}

// NextWorking advances t to the next working instant, or returns t
// unchanged when it already is one.
func (c *Calendar) NextWorking(t time.Time) (time.Time, error) {
	if c.open() || c.IsWorking(t) {
		return t, nil
	}
	t = t.In(c.loc)

	// Rest of the current day: earliest window start still ahead.
	tod := minutesOfDay(t)
	if at, ok := nextStartAfter(c.windowsFor(t), tod); ok {
		return atMinutes(t, at), nil
	}

	day := dayStart(t)
	for i := 1; i <= horizonDays; i++ {
		day = day.AddDate(0, 0, 1)
		if at, ok := firstStart(c.windowsFor(day)); ok {
			return atMinutes(day, at), nil
		}
	}
	return t, ErrHorizonExhausted
}

// nextStartAfter finds the earliest window start strictly later than
// tod minutes into the day.
func nextStartAfter(windows []models.WorkingWindow, tod int) (int, bool) {
	best, found := 0, false
	for _, w := range windows {
		start := parseHHMM(w.Start)
		if start <= tod {
			continue
		}
		if !found || start < best {
			best, found = start, true
		}
	}
	return best, found
}

func firstStart(windows []models.WorkingWindow) (int, bool) {
	best, found := 0, false
	for _, w := range windows {
		start := parseHHMM(w.Start)
		if start < 0 {
			continue
		}
		if !found || start < best {
			best, found = start, true
		}
	}
	return best, found
}

// activeWindowEnd returns the end instant of the window covering t,
// or false when t is outside every window of its date.
func (c *Calendar) activeWindowEnd(t time.Time) (time.Time, bool) {
	tod := minutesOfDay(t)
	for _, w := range c.windowsFor(t) {
		start, end := parseHHMM(w.Start), parseHHMM(w.End)
		if start < 0 || end < 0 {
			continue
		}
		if w.EndNextDay {
			if tod >= start {
				return atMinutes(t.AddDate(0, 0, 1), end), true
			}
			// Early-morning leg; skip the sub-minute tail where the
			// end instant would not be ahead of t.
			if tod <= end {
				if at := atMinutes(t, end); at.After(t) {
					return at, true
				}
			}
			continue
		}
		if tod >= start && tod < end {
			return atMinutes(t, end), true
		}
	}
	return time.Time{}, false
}

// Advance consumes d of wall-clock time strictly inside working
// windows, starting at start and crossing day boundaries as needed.
// With no calendar it degenerates to start.Add(d).
func (c *Calendar) Advance(start time.Time, d time.Duration) (time.Time, error) {
	if c.open() {
		return start.Add(d), nil
	}
	if d < 0 {
		return start, fmt.Errorf("negative duration %v", d)
	}

	cur := start.In(c.loc)
	remaining := d
	for i := 0; i < horizonDays; i++ {
		if remaining == 0 {
			return cur, nil
		}
		end, inside := c.activeWindowEnd(cur)
		if inside {
			room := end.Sub(cur)
			if room >= remaining {
				return cur.Add(remaining), nil
			}
			remaining -= room
			cur = end
			continue
		}
		next, err := c.NextWorking(cur)
		if err != nil {
			return start, err
		}
		if !next.After(cur) {
			// sub-minute edge at a window boundary; force progress
			next = cur.Add(time.Minute)
		}
		cur = next
	}
	return start, ErrHorizonExhausted
}

package timeline

import (
	"fmt"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
)

// Period selects the zoom level of the timeline.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Timeline units per view. Day shows one extra hour so a trailing
// partial column is always available.
const (
	dayUnits  = 25
	weekUnits = 7
	yearUnits = 12

	minBarWidth = 20
)

const (
	msPerHour = 3_600_000
	msPerDay  = 86_400_000
)

// ViewRange is the inclusive time span covered by one rendered view.
type ViewRange struct {
	Start time.Time
	End   time.Time
}

func (v ViewRange) StartMs() int64 { return v.Start.UnixMilli() }
func (v ViewRange) EndMs() int64   { return v.End.UnixMilli() }

// ComputeRange derives the view bounds for a period around an anchor
// date, in the anchor's location. Week runs ISO Monday through Sunday;
// ends are inclusive at the last representable millisecond.
func ComputeRange(p Period, anchor time.Time) ViewRange {
	loc := anchor.Location()
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, loc)

	switch p {
	case PeriodWeek:
		monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		return ViewRange{Start: monday, End: monday.AddDate(0, 0, 7).Add(-time.Millisecond)}
	case PeriodMonth:
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc)
		return ViewRange{Start: first, End: first.AddDate(0, 1, 0).Add(-time.Millisecond)}
	case PeriodYear:
		first := time.Date(anchor.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return ViewRange{Start: first, End: first.AddDate(1, 0, 0).Add(-time.Millisecond)}
	default:
		return ViewRange{Start: day, End: day.AddDate(0, 0, 1).Add(-time.Millisecond)}
	}
}

// CellWidth is the width of one timeline unit for the given container
// width, floored so dense views stay legible.
func CellWidth(p Period, containerWidth float64) float64 {
	switch p {
	case PeriodWeek:
		return max(60, containerWidth/weekUnits)
	case PeriodMonth:
		return 50
	case PeriodYear:
		return max(80, containerWidth/yearUnits)
	default:
		return max(20, containerWidth/dayUnits)
	}
}

// Units is the number of timeline columns for the view.
func Units(p Period, anchor time.Time) int {
	switch p {
	case PeriodWeek:
		return weekUnits
	case PeriodMonth:
		return daysInMonth(anchor)
	case PeriodYear:
		return yearUnits
	default:
		return dayUnits
	}
}

// TotalWidth is the full scrollable width of the timeline pane.
func TotalWidth(p Period, anchor time.Time, cellWidth float64) float64 {
	return float64(Units(p, anchor)) * cellWidth
}

func daysInMonth(anchor time.Time) int {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	return first.AddDate(0, 1, 0).Add(-time.Hour).Day()
}

// HeaderCell is one labeled column of the timeline header.
type HeaderCell struct {
	Primary   string
	Secondary string
	Width     float64
}

// HeaderCells produces one cell per timeline unit: hours for day view,
// days for week and month, months for year.
func HeaderCells(p Period, anchor time.Time, cellWidth float64) []HeaderCell {
	vr := ComputeRange(p, anchor)
	n := Units(p, anchor)
	cells := make([]HeaderCell, 0, n)

	for i := 0; i < n; i++ {
		var c HeaderCell
		switch p {
		case PeriodWeek:
			d := vr.Start.AddDate(0, 0, i)
			c = HeaderCell{Primary: d.Format("Mon"), Secondary: fmt.Sprintf("%d", d.Day())}
		case PeriodMonth:
			d := vr.Start.AddDate(0, 0, i)
			c = HeaderCell{Primary: fmt.Sprintf("%d", d.Day()), Secondary: d.Format("Jan")}
		case PeriodYear:
			m := vr.Start.AddDate(0, i, 0)
			c = HeaderCell{Primary: m.Format("Jan"), Secondary: m.Format("2006")}
		default:
			h := vr.Start.Add(time.Duration(i) * time.Hour)
			c = HeaderCell{Primary: h.Format("3 PM")}
			if h.Hour() == 0 {
				c.Secondary = h.Format("Jan 2")
			}
		}
		c.Width = cellWidth
		cells = append(cells, c)
	}
	return cells
}

// BarGeometry is the horizontal placement of one task bar.
type BarGeometry struct {
	Left  float64
	Width float64
}

// Bar computes the placement of a task bar inside the view, and
// whether the task is visible at all. Visibility is the any-overlap
// test with inclusive boundaries; a task with neither timestamp is
// never rendered, one with a single timestamp is treated as an
// instant. Year view deliberately positions by month index only.
func Bar(task models.Task, vr ViewRange, p Period, cellWidth float64) (BarGeometry, bool) {
	if task.PlannedStartMs == nil && task.PlannedEndMs == nil {
		return BarGeometry{}, false
	}
	startMs, endMs := *firstNonNil(task.PlannedStartMs, task.PlannedEndMs), *firstNonNil(task.PlannedEndMs, task.PlannedStartMs)

	if startMs > vr.EndMs() || endMs < vr.StartMs() {
		return BarGeometry{}, false
	}

	if p == PeriodYear {
		startIdx := clampInt(monthIndex(vr.Start, startMs), 0, yearUnits-1)
		endIdx := clampInt(monthIndex(vr.Start, endMs), 0, yearUnits-1)
		return BarGeometry{
			Left:  float64(startIdx) * cellWidth,
			Width: max(minBarWidth, float64(endIdx-startIdx+1)*cellWidth),
		}, true
	}

	perUnit := float64(msPerDay)
	if p == PeriodDay {
		perUnit = msPerHour
	}
	left := float64(startMs-vr.StartMs()) / perUnit * cellWidth
	width := float64(endMs-startMs) / perUnit * cellWidth
	return BarGeometry{Left: max(0, left), Width: max(minBarWidth, width)}, true
}

// monthIndex is the offset in months of ms from the view's first
// month; day-of-month is ignored on purpose.
func monthIndex(viewStart time.Time, ms int64) int {
	t := time.UnixMilli(ms).In(viewStart.Location())
	return (t.Year()-viewStart.Year())*12 + int(t.Month()) - int(viewStart.Month())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func firstNonNil(a, b *int64) *int64 {
	if a != nil {
		return a
	}
	return b
}

// NavigateStep moves the anchor by one view unit in either direction.
func NavigateStep(p Period, anchor time.Time, dir int) time.Time {
	switch p {
	case PeriodWeek:
		return anchor.AddDate(0, 0, 7*dir)
	case PeriodMonth:
		return anchor.AddDate(0, dir, 0)
	case PeriodYear:
		return anchor.AddDate(dir, 0, 0)
	default:
		return anchor.AddDate(0, 0, dir)
	}
}

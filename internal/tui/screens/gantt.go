package screens

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oskarwestin/gantry/internal/models"
	"github.com/oskarwestin/gantry/internal/plan"
	"github.com/oskarwestin/gantry/internal/timeline"
)

const ganttLabelWidth = 22

// Gantt renders the plan of the current session on a zoomable
// day/week/month/year grid: fixed label column, horizontally
// scrollable timeline pane, one bar per scheduled task and a "now"
// marker on the fine-grained periods.
type Gantt struct {
	loc    *time.Location
	width  int
	height int

	session *plan.Session
	period  timeline.Period
	anchor  time.Time
	offsetX int
	cursor  int
	detail  string

	// now is overridable so rendering is deterministic under test
	now func() time.Time
}

func NewGantt(loc *time.Location) *Gantt {
	return &Gantt{
		loc:    loc,
		period: timeline.PeriodWeek,
		anchor: time.Now().In(loc),
		now:    time.Now,
	}
}

func (g *Gantt) SetSize(width, height int) {
	g.width = width
	g.height = height
}

func (g *Gantt) SetSession(s *plan.Session) {
	g.session = s
	g.cursor = 0
	g.offsetX = 0
	g.detail = ""
}

func (g *Gantt) Init() tea.Cmd {
	g.anchor = g.now().In(g.loc)
	return nil
}

// visibleTasks are the in-plan tasks in plan_order that pass the
// any-overlap test for the current view.
func (g *Gantt) visibleTasks() []*models.Task {
	if g.session == nil {
		return nil
	}
	vr := timeline.ComputeRange(g.period, g.anchor)
	cw := timeline.CellWidth(g.period, float64(g.paneWidth()))

	var out []*models.Task
	for _, t := range g.session.InPlan() {
		if _, ok := timeline.Bar(*t, vr, g.period, cw); ok {
			out = append(out, t)
		}
	}
	return out
}

func (g *Gantt) paneWidth() int {
	w := g.width - ganttLabelWidth - 1
	if w < 20 {
		w = 80
	}
	return w
}

func (g *Gantt) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch keyMsg.String() {
	case "d":
		g.setPeriod(timeline.PeriodDay)
	case "w":
		g.setPeriod(timeline.PeriodWeek)
	case "m":
		g.setPeriod(timeline.PeriodMonth)
	case "y":
		g.setPeriod(timeline.PeriodYear)

	case "left":
		g.anchor = timeline.NavigateStep(g.period, g.anchor, -1)
		g.offsetX = 0
	case "right":
		g.anchor = timeline.NavigateStep(g.period, g.anchor, +1)
		g.offsetX = 0
	case "t":
		g.anchor = g.now().In(g.loc)
		g.offsetX = 0

	case "h":
		g.offsetX = max(0, g.offsetX-8)
	case "l":
		g.offsetX = min(g.maxOffset(), g.offsetX+8)

	case "up", "k":
		if g.cursor > 0 {
			g.cursor--
		}
	case "down", "j":
		if g.cursor < len(g.visibleTasks())-1 {
			g.cursor++
		}

	case "enter":
		tasks := g.visibleTasks()
		if g.cursor < len(tasks) {
			g.detail = taskDetail(tasks[g.cursor], g.loc)
		}

	case "q", "esc":
		return Navigate("planning")
	}
	return nil
}

func (g *Gantt) setPeriod(p timeline.Period) {
	g.period = p
	g.offsetX = 0
	g.cursor = 0
}

func (g *Gantt) maxOffset() int {
	total := int(timeline.TotalWidth(g.period, g.anchor, timeline.CellWidth(g.period, float64(g.paneWidth()))))
	return max(0, total-g.paneWidth())
}

func taskDetail(t *models.Task, loc *time.Location) string {
	f := func(ms *int64) string {
		if ms == nil {
			return "-"
		}
		return models.MillisToTime(*ms, loc).Format("2006-01-02 15:04")
	}
	lock := ""
	if t.PlanLocked {
		lock = "  [locked]"
	}
	return fmt.Sprintf("#%d %s %q  %s -> %s  (%.1fh)%s",
		t.OrderOrZero(), t.Key, t.Name, f(t.PlannedStartMs), f(t.PlannedEndMs), t.PlanHours(), lock)
}

// canvas helpers: rows are drawn at full timeline width, then sliced
// to the visible window.

func blankCanvas(total int) []rune {
	c := make([]rune, total)
	for i := range c {
		c[i] = ' '
	}
	return c
}

func overlay(c []rune, x int, s string) {
	for i, r := range []rune(s) {
		pos := x + i
		if pos < 0 || pos >= len(c) {
			continue
		}
		c[pos] = r
	}
}

func (g *Gantt) slice(c []rune) string {
	end := min(len(c), g.offsetX+g.paneWidth())
	start := min(g.offsetX, end)
	s := string(c[start:end])
	if pad := g.paneWidth() - (end - start); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// nowColumn returns the timeline x of the current instant, or -1 when
// the marker should not be drawn (coarse periods, now outside view).
func (g *Gantt) nowColumn(vr timeline.ViewRange, cw float64) int {
	if g.period != timeline.PeriodDay && g.period != timeline.PeriodWeek {
		return -1
	}
	now := g.now().In(g.loc)
	if now.Before(vr.Start) || now.After(vr.End) {
		return -1
	}
	perUnit := float64(24 * time.Hour / time.Millisecond)
	if g.period == timeline.PeriodDay {
		perUnit = float64(time.Hour / time.Millisecond)
	}
	return int(float64(now.UnixMilli()-vr.StartMs()) / perUnit * cw)
}

func (g *Gantt) View() string {
	var b strings.Builder

	vr := timeline.ComputeRange(g.period, g.anchor)
	cw := timeline.CellWidth(g.period, float64(g.paneWidth()))
	total := int(timeline.TotalWidth(g.period, g.anchor, cw))
	cells := timeline.HeaderCells(g.period, g.anchor, cw)
	tasks := g.visibleTasks()

	machine := ""
	if g.session != nil {
		machine = g.session.MachineKey
	}
	b.WriteString(TitleStyle.Render(fmt.Sprintf("GANTT - %s", machine)))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(fmt.Sprintf("%s  %s - %s",
		g.period, vr.Start.Format("2006-01-02"), vr.End.Format("2006-01-02"))))
	b.WriteString("\n\n")

	pad := strings.Repeat(" ", ganttLabelWidth+1)

	// Header: one primary and one secondary label row.
	primary, secondary := blankCanvas(total), blankCanvas(total)
	x := 0.0
	for _, c := range cells {
		overlay(primary, int(x), c.Primary)
		overlay(secondary, int(x), c.Secondary)
		x += c.Width
	}
	b.WriteString(pad + HeaderStyle.Render(g.slice(primary)) + "\n")
	b.WriteString(pad + DimStyle.Render(g.slice(secondary)) + "\n")

	// Now marker row.
	nowX := g.nowColumn(vr, cw)
	marker := blankCanvas(total)
	if nowX >= 0 {
		overlay(marker, nowX, "▼")
	}
	b.WriteString(pad + NowStyle.Render(g.slice(marker)) + "\n")

	if len(tasks) == 0 {
		b.WriteString(DimStyle.Render("  No scheduled tasks in this view."))
		b.WriteString("\n")
	}

	for i, t := range tasks {
		geo, _ := timeline.Bar(*t, vr, g.period, cw)
		row := blankCanvas(total)
		// cell boundaries as faint grid
		for gx := 0.0; gx < float64(total); gx += cw {
			overlay(row, int(gx), "·")
		}
		barStart, barWidth := int(geo.Left+0.5), max(1, int(geo.Width+0.5))
		overlay(row, barStart, strings.Repeat("█", barWidth))
		if nowX >= 0 {
			overlay(row, nowX, "│")
		}

		label := fmt.Sprintf("%2d %s", t.OrderOrZero(), truncate(t.Name, ganttLabelWidth-4))
		label = fmt.Sprintf("%-*s", ganttLabelWidth, label)

		labelStyle, barStyle := NormalStyle, BarStyle
		if i == g.cursor {
			labelStyle = SelectedStyle
		}
		if t.PlanLocked {
			barStyle = LockedBarStyle
		}
		b.WriteString(labelStyle.Render(label) + " " + barStyle.Render(g.slice(row)) + "\n")
	}

	if g.detail != "" {
		b.WriteString("\n")
		b.WriteString(SuccessStyle.Render(g.detail))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("[d/w/m/y] Period  [←/→] Navigate  [t] Today  [h/l] Scroll  [j/k] Select  [enter] Detail  [q] Back"))
	return b.String()
}

package screens

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oskarwestin/gantry/internal/models"
	"github.com/oskarwestin/gantry/internal/plan"
	"github.com/oskarwestin/gantry/internal/timeline"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func ganttWithTasks(t *testing.T, now time.Time, tasks ...models.Task) *Gantt {
	t.Helper()
	session := plan.NewSession("M1", 1)
	session.SetTasks(tasks)

	g := NewGantt(time.UTC)
	g.SetSession(session)
	// Wide enough that the whole week fits without scrolling.
	g.SetSize(500, 40)
	g.now = func() time.Time { return now }
	g.anchor = now
	return g
}

func scheduled(keyName string, order int, start, end time.Time) models.Task {
	s, e := start.UnixMilli(), end.UnixMilli()
	return models.Task{
		Key: keyName, Name: keyName, InPlan: true,
		PlanOrder: &order, PlannedStartMs: &s, PlannedEndMs: &e,
	}
}

func TestGanttVisibleTasksSortedByPlanOrder(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC) // Wednesday
	g := ganttWithTasks(t, now,
		scheduled("B", 2, now.Add(-time.Hour), now.Add(time.Hour)),
		scheduled("A", 1, now.Add(2*time.Hour), now.Add(4*time.Hour)),
		models.Task{Key: "X", Name: "X", InPlan: false},
	)

	tasks := g.visibleTasks()
	if len(tasks) != 2 {
		t.Fatalf("visible = %d tasks, want 2 (out-of-plan excluded)", len(tasks))
	}
	if tasks[0].Key != "A" || tasks[1].Key != "B" {
		t.Fatalf("order = %s, %s; want A then B", tasks[0].Key, tasks[1].Key)
	}
}

func TestGanttExcludesTasksOutsideView(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	g := ganttWithTasks(t, now,
		scheduled("IN", 1, now, now.Add(time.Hour)),
		scheduled("OUT", 2, now.AddDate(0, 2, 0), now.AddDate(0, 2, 1)),
	)

	tasks := g.visibleTasks()
	if len(tasks) != 1 || tasks[0].Key != "IN" {
		t.Fatalf("visible = %v, want only IN", tasks)
	}
}

func TestGanttPeriodAndNavigation(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	g := ganttWithTasks(t, now, scheduled("A", 1, now, now.Add(time.Hour)))

	g.Update(key("m"))
	if g.period != timeline.PeriodMonth {
		t.Fatalf("period = %s, want month", g.period)
	}

	g.Update(tea.KeyMsg{Type: tea.KeyRight})
	if g.anchor.Month() != time.March {
		t.Fatalf("anchor after right = %v, want March", g.anchor)
	}

	g.Update(key("t"))
	if !g.anchor.Equal(now) {
		t.Fatalf("anchor after today = %v, want %v", g.anchor, now)
	}
}

func TestGanttViewMarksNowOnFinePeriods(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	g := ganttWithTasks(t, now, scheduled("A", 1, now, now.Add(time.Hour)))

	g.setPeriod(timeline.PeriodWeek)
	if !strings.Contains(g.View(), "▼") {
		t.Fatal("week view should draw the now marker")
	}

	g.setPeriod(timeline.PeriodYear)
	if strings.Contains(g.View(), "▼") {
		t.Fatal("year view must not draw the now marker")
	}
}

func TestGanttTruncatesMultibyteLabels(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	long := scheduled("A", 1, now, now.Add(time.Hour))
	long.Name = "Фрезеровка корпуса редуктора по программе"
	g := ganttWithTasks(t, now, long)

	if view := g.View(); !utf8.ValidString(view) {
		t.Fatal("view contains a split multibyte rune")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"short ascii kept", "deburr", 10, "deburr"},
		{"exact width kept", "abcd", 4, "abcd"},
		{"long ascii cut", "mill housing rev B", 8, "mill ho…"},
		{"cyrillic cut on rune boundary", "Фрезеровка", 6, "Фрезе…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.width); got != tt.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestGanttDetailOnEnter(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	g := ganttWithTasks(t, now, scheduled("A", 1, now, now.Add(time.Hour)))

	g.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(g.detail, "A") {
		t.Fatalf("detail = %q, want the selected task", g.detail)
	}
}

package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
)

// 2026-01-05 is a Monday.
func mondayAt(hour, min int) time.Time {
	return time.Date(2026, 1, 5, hour, min, 0, 0, time.UTC)
}

func weekdayCalendar() *models.MachineCalendar {
	return &models.MachineCalendar{
		WeekTemplate: map[int][]models.WorkingWindow{
			0: {{Start: "09:00", End: "17:00"}},
			1: {{Start: "09:00", End: "17:00"}},
			2: {{Start: "09:00", End: "17:00"}},
			3: {{Start: "09:00", End: "17:00"}},
			4: {{Start: "09:00", End: "17:00"}},
		},
	}
}

func TestIsWorking(t *testing.T) {
	cal := New(weekdayCalendar(), time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday mid-window", mondayAt(10, 0), true},
		{"monday before window", mondayAt(8, 0), false},
		{"monday window start", mondayAt(9, 0), true},
		{"monday window end", mondayAt(17, 0), false},
		{"sunday no windows", time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cal.IsWorking(tc.at); got != tc.want {
				t.Fatalf("IsWorking(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestIsWorkingOvernightWindow(t *testing.T) {
	mc := &models.MachineCalendar{
		WeekTemplate: map[int][]models.WorkingWindow{
			0: {{Start: "18:00", End: "02:00", EndNextDay: true}},
		},
	}
	cal := New(mc, time.UTC)

	if !cal.IsWorking(mondayAt(23, 30)) {
		t.Fatal("23:30 should fall inside the overnight window")
	}
	if cal.IsWorking(mondayAt(3, 0)) {
		t.Fatal("03:00 is outside both legs of the overnight window")
	}
	if !cal.IsWorking(mondayAt(1, 0)) {
		t.Fatal("01:00 should match the early-morning leg")
	}
}

func TestExceptionOverridesTemplate(t *testing.T) {
	mc := weekdayCalendar()
	mc.WorkExceptions = []models.WorkException{
		{Date: "2026-01-05", Windows: nil},
	}
	cal := New(mc, time.UTC)

	if cal.IsWorking(mondayAt(10, 0)) {
		t.Fatal("exception with no windows must close the day")
	}
	// The following Monday keeps the template.
	nextMon := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	if !cal.IsWorking(nextMon) {
		t.Fatal("exception must apply to its own date only")
	}
}

func TestExceptionExtraShift(t *testing.T) {
	mc := weekdayCalendar()
	mc.WorkExceptions = []models.WorkException{
		{Date: "2026-01-04", Windows: []models.WorkingWindow{{Start: "08:00", End: "12:00"}}},
	}
	cal := New(mc, time.UTC)

	sunday := time.Date(2026, 1, 4, 9, 0, 0, 0, time.UTC)
	if !cal.IsWorking(sunday) {
		t.Fatal("exception windows must open an otherwise closed day")
	}
}

func TestNextWorking(t *testing.T) {
	cal := New(weekdayCalendar(), time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"already working", mondayAt(10, 0), mondayAt(10, 0)},
		{"same day later window", mondayAt(7, 30), mondayAt(9, 0)},
		{"after close rolls to tuesday", mondayAt(18, 0), time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)},
		{"weekend rolls to monday", time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC), mondayAt(9, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cal.NextWorking(tc.at)
			if err != nil {
				t.Fatalf("NextWorking(%v): %v", tc.at, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("NextWorking(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestNextWorkingHorizonExhausted(t *testing.T) {
	cal := New(&models.MachineCalendar{}, time.UTC)

	_, err := cal.NextWorking(mondayAt(10, 0))
	if !errors.Is(err, ErrHorizonExhausted) {
		t.Fatalf("expected ErrHorizonExhausted, got %v", err)
	}
}

func TestAdvance(t *testing.T) {
	cal := New(weekdayCalendar(), time.UTC)

	tests := []struct {
		name  string
		start time.Time
		d     time.Duration
		want  time.Time
	}{
		{"inside one window", mondayAt(9, 0), 3 * time.Hour, mondayAt(12, 0)},
		{"exact window fit", mondayAt(9, 0), 8 * time.Hour, mondayAt(17, 0)},
		{"spills into tuesday", mondayAt(13, 0), 6 * time.Hour, time.Date(2026, 1, 6, 11, 0, 0, 0, time.UTC)},
		{"starts outside a window", mondayAt(6, 0), 2 * time.Hour, mondayAt(11, 0)},
		{"zero duration", mondayAt(10, 0), 0, mondayAt(10, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cal.Advance(tc.start, tc.d)
			if err != nil {
				t.Fatalf("Advance(%v, %v): %v", tc.start, tc.d, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("Advance(%v, %v) = %v, want %v", tc.start, tc.d, got, tc.want)
			}
		})
	}
}

func TestAdvanceAcrossWeekend(t *testing.T) {
	cal := New(weekdayCalendar(), time.UTC)

	// Friday 2026-01-09 15:00 + 4h: 2h on Friday, 2h on Monday.
	start := time.Date(2026, 1, 9, 15, 0, 0, 0, time.UTC)
	got, err := cal.Advance(start, 4*time.Hour)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	want := time.Date(2026, 1, 12, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Advance across weekend = %v, want %v", got, want)
	}
}

func TestNilCalendarIsAlwaysOpen(t *testing.T) {
	cal := New(nil, time.UTC)

	at := mondayAt(3, 0)
	if !cal.IsWorking(at) {
		t.Fatal("nil calendar must treat every instant as working")
	}
	next, err := cal.NextWorking(at)
	if err != nil || !next.Equal(at) {
		t.Fatalf("NextWorking = %v, %v, want identity", next, err)
	}
	end, err := cal.Advance(at, 90*time.Minute)
	if err != nil || !end.Equal(at.Add(90*time.Minute)) {
		t.Fatalf("Advance = %v, %v, want naive addition", end, err)
	}
}

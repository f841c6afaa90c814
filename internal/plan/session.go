package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/oskarwestin/gantry/internal/calendar"
	"github.com/oskarwestin/gantry/internal/models"
	"github.com/oskarwestin/gantry/internal/schedule"
)

// Session owns the in-memory plan of one machine selection: the task
// list, the machine calendar, and the baseline snapshot the change set
// is diffed against. A new session is built per selection and
// discarded on machine switch, so nothing leaks across machines.
// Generation identifies the selection that loaded it; responses from
// older selections are discarded by the caller.
type Session struct {
	MachineKey string
	Generation uint64

	tasks    []*models.Task
	cal      *calendar.Calendar
	baseline map[string]models.Task
}

func NewSession(machineKey string, generation uint64) *Session {
	return &Session{
		MachineKey: machineKey,
		Generation: generation,
		baseline:   map[string]models.Task{},
	}
}

// SetTasks installs a freshly loaded task list and snapshots it as the
// baseline.
func (s *Session) SetTasks(tasks []models.Task) {
	s.tasks = make([]*models.Task, len(tasks))
	for i := range tasks {
		t := tasks[i].Clone()
		s.tasks[i] = &t
	}
	s.Snapshot()
}

// SetCalendar installs the machine calendar; nil means 7x24.
func (s *Session) SetCalendar(mc *models.MachineCalendar, loc *time.Location) {
	s.cal = calendar.New(mc, loc)
}

func (s *Session) Calendar() *calendar.Calendar {
	if s.cal == nil {
		return calendar.New(nil, time.Local)
	}
	return s.cal
}

// Snapshot captures the current state as the diff baseline. Called
// after every successful load or save.
func (s *Session) Snapshot() {
	s.baseline = make(map[string]models.Task, len(s.tasks))
	for _, t := range s.tasks {
		s.baseline[t.Key] = t.Clone()
	}
}

// Tasks returns the live task list (shared pointers, not copies).
func (s *Session) Tasks() []*models.Task {
	return s.tasks
}

// InPlan returns the in-plan tasks sorted by plan_order, missing
// orders first.
func (s *Session) InPlan() []*models.Task {
	var out []*models.Task
	for _, t := range s.tasks {
		if t.InPlan {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderOrZero() < out[j].OrderOrZero()
	})
	return out
}

func (s *Session) find(key string) *models.Task {
	for _, t := range s.tasks {
		if t.Key == key {
			return t
		}
	}
	return nil
}

// Reorder moves the in-plan task at position from to position to and
// reassigns dense 1-based plan_order over the whole in-plan set.
func (s *Session) Reorder(from, to int) error {
	inPlan := s.InPlan()
	if from < 0 || from >= len(inPlan) || to < 0 || to >= len(inPlan) {
		return fmt.Errorf("reorder position out of range")
	}
	moved := inPlan[from]
	inPlan = append(inPlan[:from], inPlan[from+1:]...)
	inPlan = append(inPlan[:to], append([]*models.Task{moved}, inPlan[to:]...)...)
	renumber(inPlan)
	return nil
}

// AddToPlan puts the task into the plan at the end of the order.
// Existing orders stay untouched so the change set carries only the
// added task.
func (s *Session) AddToPlan(key string) error {
	t := s.find(key)
	if t == nil {
		return fmt.Errorf("unknown task %q", key)
	}
	if t.InPlan {
		return nil
	}
	last := 0
	for _, p := range s.InPlan() {
		if p.OrderOrZero() > last {
			last = p.OrderOrZero()
		}
	}
	t.InPlan = true
	next := last + 1
	t.PlanOrder = &next
	return nil
}

// RemoveFromPlan drops the task from the plan and clears every
// scheduling field, then closes the order gap it left behind.
func (s *Session) RemoveFromPlan(key string) error {
	t := s.find(key)
	if t == nil {
		return fmt.Errorf("unknown task %q", key)
	}
	t.InPlan = false
	t.PlanOrder = nil
	t.PlannedStartMs = nil
	t.PlannedEndMs = nil
	t.PlanLocked = false
	renumber(s.InPlan())
	return nil
}

// SetRemainingHours is the inline-edit path for a task's duration.
func (s *Session) SetRemainingHours(key string, hours float64) error {
	t := s.find(key)
	if t == nil {
		return fmt.Errorf("unknown task %q", key)
	}
	if hours < 0 {
		return fmt.Errorf("hours must not be negative")
	}
	t.RemainingHours = hours
	return nil
}

// ToggleLock flips the review flag; locking never freezes scheduling
// fields.
func (s *Session) ToggleLock(key string) error {
	t := s.find(key)
	if t == nil {
		return fmt.Errorf("unknown task %q", key)
	}
	t.PlanLocked = !t.PlanLocked
	return nil
}

// Autoschedule packs the in-plan tasks sequentially from start using
// the session calendar.
func (s *Session) Autoschedule(start time.Time, crit schedule.Criterion) error {
	_, err := schedule.Run(s.InPlan(), start, crit, s.Calendar())
	return err
}

func renumber(inPlan []*models.Task) {
	for i, t := range inPlan {
		order := i + 1
		t.PlanOrder = &order
	}
}

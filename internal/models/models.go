package models

import "time"

type Machine struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Task is one planning unit on a machine. Timestamps are epoch
// milliseconds in the deployment timezone; a zero hours value means
// "not set" on the backend.
type Task struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	JobNo          string  `json:"job_no,omitempty"`
	MachineFK      string  `json:"machine_fk,omitempty"`
	EstimatedHours float64 `json:"estimated_hours"`
	RemainingHours float64 `json:"remaining_hours"`
	FinishTimeMs   *int64  `json:"finish_time_ms,omitempty"`
	InPlan         bool    `json:"in_plan"`
	PlanOrder      *int    `json:"plan_order"`
	PlannedStartMs *int64  `json:"planned_start_ms"`
	PlannedEndMs   *int64  `json:"planned_end_ms"`
	PlanLocked     bool    `json:"plan_locked"`
}

// PlanHours resolves the scheduling duration for the task:
// remaining hours, falling back to estimated hours, falling back to 2h.
func (t Task) PlanHours() float64 {
	if t.RemainingHours > 0 {
		return t.RemainingHours
	}
	if t.EstimatedHours > 0 {
		return t.EstimatedHours
	}
	return 2
}

// OrderOrZero is the sort key used for row layout; tasks that never
// got a plan_order sort first.
func (t Task) OrderOrZero() int {
	if t.PlanOrder == nil {
		return 0
	}
	return *t.PlanOrder
}

// Clone returns a deep copy, pointer fields included.
func (t Task) Clone() Task {
	c := t
	c.FinishTimeMs = cloneInt64(t.FinishTimeMs)
	c.PlanOrder = cloneInt(t.PlanOrder)
	c.PlannedStartMs = cloneInt64(t.PlannedStartMs)
	c.PlannedEndMs = cloneInt64(t.PlannedEndMs)
	return c
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// WorkingWindow is one contiguous working interval within a day.
// EndNextDay marks windows that cross midnight (the end time belongs
// to the following calendar day).
type WorkingWindow struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	EndNextDay bool   `json:"end_next_day,omitempty"`
}

// WorkException overrides the week template for one calendar date.
// An empty Windows slice closes the date entirely.
type WorkException struct {
	Date    string          `json:"date"`
	Windows []WorkingWindow `json:"windows"`
}

// MachineCalendar is the machine's recurring weekly availability plus
// date-specific overrides. WeekTemplate is keyed 0=Monday..6=Sunday.
type MachineCalendar struct {
	WeekTemplate   map[int][]WorkingWindow `json:"week_template"`
	WorkExceptions []WorkException         `json:"work_exceptions"`
}

// PlanPatch is one entry of the save-plan payload: either a full task
// scheduling payload (InPlan true) or a bare removal (key + in_plan
// false, everything else omitted).
type PlanPatch struct {
	Key            string  `json:"key"`
	InPlan         bool    `json:"in_plan"`
	MachineFK      string  `json:"machine_fk,omitempty"`
	Name           string  `json:"name,omitempty"`
	PlannedStartMs *int64  `json:"planned_start_ms,omitempty"`
	PlannedEndMs   *int64  `json:"planned_end_ms,omitempty"`
	PlanOrder      *int    `json:"plan_order,omitempty"`
	PlanLocked     *bool   `json:"plan_locked,omitempty"`
}

// MillisToTime interprets an epoch-millisecond timestamp in loc.
func MillisToTime(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

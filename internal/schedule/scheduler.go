package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oskarwestin/gantry/internal/calendar"
	"github.com/oskarwestin/gantry/internal/models"
)

// Criterion selects the order tasks are packed in.
type Criterion string

const (
	// ByOrder packs by ascending plan_order and leaves plan_order
	// untouched.
	ByOrder Criterion = "order"
	// ByFinishTime packs by ascending finish time and rewrites
	// plan_order to the new 1-based rank. Tasks without a finish time
	// pack last.
	ByFinishTime Criterion = "finish_time"
)

// ErrNothingToSchedule is reported when the machine has no in-plan
// tasks; callers surface it as a notice, not a failure.
var ErrNothingToSchedule = errors.New("nothing to schedule")

// Tasks without a finish time sort as the far future.
var farFuture = time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Run assigns strictly sequential [start, end) intervals to every task,
// skipping non-working time via cal. Tasks are mutated in place; the
// returned keys are the tasks whose scheduling fields were touched.
// cal built from a nil MachineCalendar degenerates to 7x24 packing.
func Run(tasks []*models.Task, start time.Time, crit Criterion, cal *calendar.Calendar) ([]string, error) {
	if len(tasks) == 0 {
		return nil, ErrNothingToSchedule
	}

	sorted := sortForCriterion(tasks, crit)

	cursor, err := cal.NextWorking(start)
	if err != nil {
		return nil, fmt.Errorf("autoschedule: %w", err)
	}

	// Compute every slot before assigning any, so a horizon failure
	// rejects the whole run without partial mutation.
	type slot struct{ start, end int64 }
	slots := make([]slot, len(sorted))
	for i, t := range sorted {
		d := time.Duration(t.PlanHours() * float64(time.Hour))

		taskStart, err := cal.NextWorking(cursor)
		if err != nil {
			return nil, fmt.Errorf("autoschedule %s: %w", t.Key, err)
		}
		taskEnd, err := cal.Advance(taskStart, d)
		if err != nil {
			return nil, fmt.Errorf("autoschedule %s: %w", t.Key, err)
		}

		slots[i] = slot{taskStart.UnixMilli(), taskEnd.UnixMilli()}
		cursor = taskEnd
	}

	touched := make([]string, 0, len(sorted))
	for i, t := range sorted {
		s := slots[i]
		t.PlannedStartMs = &s.start
		t.PlannedEndMs = &s.end
		if crit == ByFinishTime {
			rank := i + 1
			t.PlanOrder = &rank
		}
		touched = append(touched, t.Key)
	}
	return touched, nil
}

// sortForCriterion returns the packing order without disturbing the
// caller's slice. Ties keep the original array position.
func sortForCriterion(tasks []*models.Task, crit Criterion) []*models.Task {
	sorted := make([]*models.Task, len(tasks))
	copy(sorted, tasks)

	switch crit {
	case ByFinishTime:
		sort.SliceStable(sorted, func(i, j int) bool {
			return finishOrFarFuture(sorted[i]) < finishOrFarFuture(sorted[j])
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].OrderOrZero() < sorted[j].OrderOrZero()
		})
	}
	return sorted
}

func finishOrFarFuture(t *models.Task) int64 {
	if t.FinishTimeMs == nil {
		return farFuture
	}
	return *t.FinishTimeMs
}

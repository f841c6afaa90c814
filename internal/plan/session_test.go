package plan

import (
	"testing"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
	"github.com/oskarwestin/gantry/internal/schedule"
)

func order(n int) *int { return &n }

func loadedSession(t *testing.T, tasks ...models.Task) *Session {
	t.Helper()
	s := NewSession("M1", 1)
	s.SetTasks(tasks)
	return s
}

func TestChangeSetEmptyAfterLoad(t *testing.T) {
	s := loadedSession(t,
		models.Task{Key: "A", InPlan: true, PlanOrder: order(1)},
		models.Task{Key: "B", InPlan: false},
	)
	if got := s.ChangeSet(); len(got) != 0 {
		t.Fatalf("change set right after load = %v, want empty", got)
	}
}

func TestChangeSetMinimalRemoval(t *testing.T) {
	s := loadedSession(t, models.Task{Key: "A", InPlan: true, PlanOrder: order(1)})

	if err := s.RemoveFromPlan("A"); err != nil {
		t.Fatalf("RemoveFromPlan: %v", err)
	}

	got := s.ChangeSet()
	if len(got) != 1 {
		t.Fatalf("change set = %v, want one removal patch", got)
	}
	p := got[0]
	if p.Key != "A" || p.InPlan {
		t.Fatalf("patch = %+v, want bare removal", p)
	}
	if p.PlanOrder != nil || p.PlannedStartMs != nil || p.PlannedEndMs != nil || p.PlanLocked != nil || p.Name != "" {
		t.Fatalf("removal patch carries extra fields: %+v", p)
	}
}

func TestChangeSetFullPatchOnReorder(t *testing.T) {
	s := loadedSession(t,
		models.Task{Key: "A", Name: "mill housing", InPlan: true, PlanOrder: order(1)},
		models.Task{Key: "B", Name: "turn shaft", InPlan: true, PlanOrder: order(2)},
	)

	if err := s.Reorder(1, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	got := s.ChangeSet()
	if len(got) != 2 {
		t.Fatalf("change set = %v, want both reordered tasks", got)
	}
	for _, p := range got {
		if !p.InPlan || p.PlanOrder == nil {
			t.Fatalf("reorder patch should be a full payload: %+v", p)
		}
	}
}

func TestChangeSetNewAddition(t *testing.T) {
	s := loadedSession(t, models.Task{Key: "A", InPlan: true, PlanOrder: order(1)})

	// A task the baseline has never seen, already in plan.
	s.tasks = append(s.tasks, &models.Task{Key: "NEW", Name: "deburr", InPlan: true, PlanOrder: order(2)})

	got := s.ChangeSet()
	if len(got) != 1 || got[0].Key != "NEW" || !got[0].InPlan {
		t.Fatalf("change set = %v, want the full NEW payload", got)
	}
}

func TestAddToPlanAppendsAtEnd(t *testing.T) {
	s := loadedSession(t,
		models.Task{Key: "A", InPlan: true, PlanOrder: order(1)},
		models.Task{Key: "B", InPlan: true, PlanOrder: order(2)},
		models.Task{Key: "NEW", InPlan: false},
	)

	if err := s.AddToPlan("NEW"); err != nil {
		t.Fatalf("AddToPlan: %v", err)
	}

	inPlan := s.InPlan()
	if got := inPlan[len(inPlan)-1].Key; got != "NEW" {
		keys := make([]string, len(inPlan))
		for i, task := range inPlan {
			keys[i] = task.Key
		}
		t.Fatalf("in-plan order = %v, want NEW at the end", keys)
	}
	if inPlan[0].OrderOrZero() != 1 || inPlan[1].OrderOrZero() != 2 {
		t.Fatal("adding a task must not shift existing orders")
	}

	got := s.ChangeSet()
	if len(got) != 1 || got[0].Key != "NEW" {
		t.Fatalf("change set = %v, want only the added task", got)
	}
	if !got[0].InPlan || got[0].PlanOrder == nil || *got[0].PlanOrder != 3 {
		t.Fatalf("patch = %+v, want full payload with order 3", got[0])
	}
}

func TestChangeSetBaselineTaskGone(t *testing.T) {
	s := loadedSession(t,
		models.Task{Key: "A", InPlan: true, PlanOrder: order(1)},
		models.Task{Key: "B", InPlan: true, PlanOrder: order(2)},
	)

	// B vanishes from the working set (e.g. filtered out upstream).
	s.tasks = s.tasks[:1]

	got := s.ChangeSet()
	if len(got) != 1 {
		t.Fatalf("change set = %v, want one removal", got)
	}
	if got[0].Key != "B" || got[0].InPlan {
		t.Fatalf("patch = %+v, want removal of B", got[0])
	}
}

func TestChangeSetNoDuplicateRemoval(t *testing.T) {
	s := loadedSession(t, models.Task{Key: "A", InPlan: true, PlanOrder: order(1)})

	if err := s.RemoveFromPlan("A"); err != nil {
		t.Fatalf("RemoveFromPlan: %v", err)
	}

	// A is present with in_plan=false AND was in_plan in the baseline;
	// only one patch may be emitted.
	if got := s.ChangeSet(); len(got) != 1 {
		t.Fatalf("change set = %v, want exactly one patch", got)
	}
}

func TestSnapshotResetsDiff(t *testing.T) {
	s := loadedSession(t, models.Task{Key: "A", InPlan: true, PlanOrder: order(1)})

	if err := s.ToggleLock("A"); err != nil {
		t.Fatalf("ToggleLock: %v", err)
	}
	if len(s.ChangeSet()) != 1 {
		t.Fatal("lock toggle should dirty the task")
	}

	s.Snapshot()
	if got := s.ChangeSet(); len(got) != 0 {
		t.Fatalf("change set after snapshot = %v, want empty", got)
	}
}

func TestReorderAssignsDenseOrder(t *testing.T) {
	s := loadedSession(t,
		models.Task{Key: "A", InPlan: true, PlanOrder: order(3)},
		models.Task{Key: "B", InPlan: true, PlanOrder: order(7)},
		models.Task{Key: "C", InPlan: true, PlanOrder: order(9)},
	)

	// Move C to the front; orders become dense 1..3.
	if err := s.Reorder(2, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	inPlan := s.InPlan()
	if inPlan[0].Key != "C" {
		t.Fatalf("first task = %s, want C", inPlan[0].Key)
	}
	for i, task := range inPlan {
		if task.OrderOrZero() != i+1 {
			t.Fatalf("task %s has order %d, want %d", task.Key, task.OrderOrZero(), i+1)
		}
	}
}

func TestRemoveFromPlanClearsSchedulingFields(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC).UnixMilli()
	end := start + 3_600_000
	s := loadedSession(t, models.Task{
		Key: "A", InPlan: true, PlanOrder: order(1),
		PlannedStartMs: &start, PlannedEndMs: &end, PlanLocked: true,
	})

	if err := s.RemoveFromPlan("A"); err != nil {
		t.Fatalf("RemoveFromPlan: %v", err)
	}

	got := s.Tasks()[0]
	if got.InPlan || got.PlanOrder != nil || got.PlannedStartMs != nil || got.PlannedEndMs != nil || got.PlanLocked {
		t.Fatalf("scheduling fields not cleared: %+v", got)
	}
}

func TestAutoscheduleThroughSession(t *testing.T) {
	s := loadedSession(t,
		models.Task{Key: "A", InPlan: true, PlanOrder: order(1), RemainingHours: 2},
		models.Task{Key: "B", InPlan: true, PlanOrder: order(2), RemainingHours: 3},
		models.Task{Key: "X", InPlan: false},
	)
	s.SetCalendar(nil, time.UTC)

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if err := s.Autoschedule(start, schedule.ByOrder); err != nil {
		t.Fatalf("Autoschedule: %v", err)
	}

	if s.Tasks()[2].PlannedStartMs != nil {
		t.Fatal("out-of-plan task must not be scheduled")
	}
	got := s.ChangeSet()
	if len(got) != 2 {
		t.Fatalf("change set = %v, want the two scheduled tasks", got)
	}
}

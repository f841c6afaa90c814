package plan

import "github.com/oskarwestin/gantry/internal/models"

// ChangeSet computes the minimal patch list reconciling the backend
// with the local state: tasks new to the plan as full payloads, edited
// tasks as full payloads, and plan removals as bare {key, in_plan:
// false} entries. Immediately after Snapshot the result is empty.
func (s *Session) ChangeSet() []models.PlanPatch {
	var patches []models.PlanPatch
	seen := map[string]bool{}

	for _, t := range s.tasks {
		seen[t.Key] = true
		base, known := s.baseline[t.Key]
		if !known {
			if t.InPlan {
				patches = append(patches, fullPatch(t))
			}
			continue
		}
		if !schedulingChanged(*t, base) {
			continue
		}
		if !t.InPlan && base.InPlan {
			patches = append(patches, models.PlanPatch{Key: t.Key, InPlan: false})
			continue
		}
		patches = append(patches, fullPatch(t))
	}

	// Baseline tasks that disappeared from the working set entirely.
	for key, base := range s.baseline {
		if seen[key] || !base.InPlan {
			continue
		}
		patches = append(patches, models.PlanPatch{Key: key, InPlan: false})
	}
	return patches
}

// schedulingChanged compares only the persisted-relevant fields.
func schedulingChanged(cur, base models.Task) bool {
	return cur.InPlan != base.InPlan ||
		!intEq(cur.PlanOrder, base.PlanOrder) ||
		!int64Eq(cur.PlannedStartMs, base.PlannedStartMs) ||
		!int64Eq(cur.PlannedEndMs, base.PlannedEndMs) ||
		cur.PlanLocked != base.PlanLocked
}

func fullPatch(t *models.Task) models.PlanPatch {
	locked := t.PlanLocked
	return models.PlanPatch{
		Key:            t.Key,
		InPlan:         true,
		MachineFK:      t.MachineFK,
		Name:           t.Name,
		PlannedStartMs: t.PlannedStartMs,
		PlannedEndMs:   t.PlannedEndMs,
		PlanOrder:      t.PlanOrder,
		PlanLocked:     &locked,
	}
}

func intEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64Eq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

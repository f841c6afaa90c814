package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
)

// SnapshotRepo caches the last successfully loaded task list per
// machine, so the plan is still inspectable when the backend is down.
type SnapshotRepo struct {
	db *sql.DB
}

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Put(machineKey string, tasks []models.Task) error {
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO plan_snapshots (machine_key, tasks_json, loaded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(machine_key) DO UPDATE SET
			tasks_json = excluded.tasks_json,
			loaded_at = excluded.loaded_at
	`, machineKey, string(tasksJSON), time.Now())
	return err
}

// Get returns the cached tasks and when they were loaded, or nil when
// the machine has no snapshot.
func (r *SnapshotRepo) Get(machineKey string) ([]models.Task, time.Time, error) {
	var tasksJSON string
	var loadedAt time.Time

	err := r.db.QueryRow(`
		SELECT tasks_json, loaded_at
		FROM plan_snapshots
		WHERE machine_key = ?
	`, machineKey).Scan(&tasksJSON, &loadedAt)

	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	var tasks []models.Task
	if err := json.Unmarshal([]byte(tasksJSON), &tasks); err != nil {
		return nil, time.Time{}, err
	}
	return tasks, loadedAt, nil
}

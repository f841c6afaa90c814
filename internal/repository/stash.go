package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
)

// StashRepo persists change sets whose save failed, so they survive a
// restart and can be retried. One pending save per machine; a newer
// failure replaces an older one.
type StashRepo struct {
	db *sql.DB
}

func NewStashRepo(db *sql.DB) *StashRepo {
	return &StashRepo{db: db}
}

// PendingSave is a stashed change set waiting for a retry.
type PendingSave struct {
	MachineKey string
	Items      []models.PlanPatch
	LastError  string
	CreatedAt  time.Time
}

func (r *StashRepo) Put(machineKey string, items []models.PlanPatch, lastError string) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO pending_saves (machine_key, items_json, last_error, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(machine_key) DO UPDATE SET
			items_json = excluded.items_json,
			last_error = excluded.last_error,
			created_at = excluded.created_at
	`, machineKey, string(itemsJSON), lastError, time.Now())
	return err
}

func (r *StashRepo) Get(machineKey string) (*PendingSave, error) {
	var p PendingSave
	var itemsJSON string

	err := r.db.QueryRow(`
		SELECT machine_key, items_json, last_error, created_at
		FROM pending_saves
		WHERE machine_key = ?
	`, machineKey).Scan(&p.MachineKey, &itemsJSON, &p.LastError, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &p.Items); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *StashRepo) All() ([]PendingSave, error) {
	rows, err := r.db.Query(`
		SELECT machine_key, items_json, last_error, created_at
		FROM pending_saves
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingSave
	for rows.Next() {
		var p PendingSave
		var itemsJSON string
		if err := rows.Scan(&p.MachineKey, &itemsJSON, &p.LastError, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(itemsJSON), &p.Items); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *StashRepo) Delete(machineKey string) error {
	_, err := r.db.Exec("DELETE FROM pending_saves WHERE machine_key = ?", machineKey)
	return err
}

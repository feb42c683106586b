package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"energy-forecast/internal/forecast"

	"go.etcd.io/bbolt"
)

// RunInfo is the listing view of a stored run, without per-step records.
type RunInfo struct {
	RunID          string               `json:"run_id"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
	Settings       forecast.RunSettings `json:"settings"`
	TrainingPoints int                  `json:"training_points"`
	ActualPoints   int                  `json:"actual_points"`
	Summary        forecast.Summary     `json:"summary"`
}

// StoreRun saves a completed run under its run id.
func (s *Store) StoreRun(result *forecast.Result) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("run has no id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(result.RunID), data)
	})
}

// GetRun loads a stored run. It returns ErrNotFound for an unknown id.
func (s *Store) GetRun(id string) (*forecast.Result, error) {
	var result forecast.Result
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("run %q: %w", id, ErrNotFound)
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("unmarshal run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns returns stored runs, most recent first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]RunInfo, error) {
	var runs []RunInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var info RunInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return nil // Skip malformed records
			}
			runs = append(runs, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

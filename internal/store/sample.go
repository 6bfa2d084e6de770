package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// Sample is one raw capture that went into a reference pose.
type Sample struct {
	ID          int64     `json:"id"`
	ReferenceID string    `json:"reference_id"`
	SampleIndex int       `json:"sample_index"`
	Pose        pose.Pose `json:"pose"`
	CreatedAt   time.Time `json:"created_at"`
}

// SampleRepository provides CRUD operations for reference samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create replaces the samples of a reference in a single transaction.
// It also updates the sample count on the reference.
func (r *SampleRepository) Create(referenceID string, samples []pose.Pose) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reference_samples WHERE reference_id = ?`, referenceID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO reference_samples (reference_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range samples {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode sample %d: %w", i, err)
		}
		if _, err := stmt.Exec(referenceID, i, string(data)); err != nil {
			return err
		}
	}

	result, err := tx.Exec(`UPDATE reference_poses SET samples = ?, updated_at = ? WHERE id = ?`,
		len(samples), time.Now(), referenceID)
	if err != nil {
		return err
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByReferenceID retrieves all samples for a given reference.
func (r *SampleRepository) GetByReferenceID(referenceID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, reference_id, sample_index, data, created_at
		 FROM reference_samples
		 WHERE reference_id = ?
		 ORDER BY sample_index`,
		referenceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.ReferenceID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &s.Pose); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", s.ID, err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// DeleteByReferenceID removes all samples for a given reference.
func (r *SampleRepository) DeleteByReferenceID(referenceID string) error {
	_, err := r.db.Exec(`DELETE FROM reference_samples WHERE reference_id = ?`, referenceID)
	return err
}

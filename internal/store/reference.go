package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNameTaken is returned when a reference name is already in use.
	ErrNameTaken = errors.New("name already in use")
)

// Reference is a named target pose stored in the database.
type Reference struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Samples   int       `json:"samples"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReferenceRepository provides CRUD operations for reference poses.
type ReferenceRepository struct {
	db *sql.DB
}

// References returns the reference repository for this store.
func (s *Store) References() *ReferenceRepository {
	return &ReferenceRepository{db: s.db}
}

// Create stores a new reference pose under name. Source records where the
// pose came from, such as an image path.
func (r *ReferenceRepository) Create(name, source string, p pose.Pose) (*Reference, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("reference name is required")
	}
	if p.IsEmpty() {
		return nil, errors.New("reference pose has no landmarks")
	}

	now := time.Now()
	ref := &Reference{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		Samples:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO reference_poses (id, name, source, samples, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ref.ID, ref.Name, ref.Source, ref.Samples, ref.CreatedAt, ref.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return nil, err
	}

	if err := insertLandmarks(tx, ref.ID, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ref, nil
}

func insertLandmarks(tx *sql.Tx, id string, p pose.Pose) error {
	stmt, err := tx.Prepare(
		`INSERT INTO reference_landmarks (reference_id, landmark_index, x, y, z, visibility)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, lm := range p.Landmarks {
		if _, err := stmt.Exec(id, i, lm.X, lm.Y, lm.Z, lm.Visibility); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const referenceColumns = `id, name, source, samples, created_at, updated_at`

func scanReference(row interface{ Scan(...any) error }) (*Reference, error) {
	ref := &Reference{}
	err := row.Scan(&ref.ID, &ref.Name, &ref.Source, &ref.Samples, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ref, nil
}

// GetByID retrieves a reference by its ID.
func (r *ReferenceRepository) GetByID(id string) (*Reference, error) {
	return scanReference(r.db.QueryRow(
		`SELECT `+referenceColumns+` FROM reference_poses WHERE id = ?`, id,
	))
}

// GetByName retrieves a reference by its name.
func (r *ReferenceRepository) GetByName(name string) (*Reference, error) {
	return scanReference(r.db.QueryRow(
		`SELECT `+referenceColumns+` FROM reference_poses WHERE name = ?`, name,
	))
}

// List retrieves all references, newest first.
func (r *ReferenceRepository) List() ([]*Reference, error) {
	rows, err := r.db.Query(
		`SELECT ` + referenceColumns + ` FROM reference_poses ORDER BY created_at DESC, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refs, nil
}

// Rename changes the name of a reference.
func (r *ReferenceRepository) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("reference name is required")
	}

	result, err := r.db.Exec(
		`UPDATE reference_poses SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return err
	}
	return expectOneRow(result)
}

// Delete removes a reference and its landmarks and samples.
func (r *ReferenceRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM reference_poses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Landmarks loads the stored pose of a reference.
func (r *ReferenceRepository) Landmarks(id string) (pose.Pose, error) {
	if _, err := r.GetByID(id); err != nil {
		return pose.Pose{}, err
	}

	rows, err := r.db.Query(
		`SELECT landmark_index, x, y, z, visibility
		 FROM reference_landmarks
		 WHERE reference_id = ?
		 ORDER BY landmark_index`,
		id,
	)
	if err != nil {
		return pose.Pose{}, err
	}
	defer rows.Close()

	lms := make([]pose.Landmark, pose.NumLandmarks)
	for rows.Next() {
		var idx int
		var lm pose.Landmark
		if err := rows.Scan(&idx, &lm.X, &lm.Y, &lm.Z, &lm.Visibility); err != nil {
			return pose.Pose{}, err
		}
		if idx >= 0 && idx < pose.NumLandmarks {
			lms[idx] = lm
		}
	}

	if err := rows.Err(); err != nil {
		return pose.Pose{}, err
	}

	return pose.New(lms), nil
}

// SetLandmarks replaces the stored pose of a reference.
func (r *ReferenceRepository) SetLandmarks(id string, p pose.Pose) error {
	if p.IsEmpty() {
		return errors.New("reference pose has no landmarks")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE reference_poses SET updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM reference_landmarks WHERE reference_id = ?`, id); err != nil {
		return err
	}
	if err := insertLandmarks(tx, id, p); err != nil {
		return err
	}

	return tx.Commit()
}

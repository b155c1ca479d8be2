package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Analysis is a stored analysis of one recording. The JSON columns hold the
// serialized squat report parts as produced by the analyzer.
type Analysis struct {
	ID           string          `json:"id"`
	Exercise     int             `json:"exercise"`
	ExerciseName string          `json:"exercise_name"`
	Score        int             `json:"score"`
	Grade        string          `json:"grade"`
	FrameCount   int             `json:"frame_count"`
	FPS          float64         `json:"fps"`
	Filename     string          `json:"filename,omitempty"`
	View         string          `json:"view,omitempty"`
	Calculation  json.RawMessage `json:"calculation_results,omitempty"`
	FormAnalysis json.RawMessage `json:"form_analysis,omitempty"`
	Phases       json.RawMessage `json:"phases,omitempty"`
	Validation   json.RawMessage `json:"validation,omitempty"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	Exercise int
	MinScore int
	Since    time.Time
	Limit    int
	Offset   int
}

// AnalysisRepository provides CRUD operations for analyses.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository for this store.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

const analysisColumns = `id, exercise, exercise_name, score, grade, frame_count, fps, filename, view,
	calculation, form_analysis, phases, validation, notes, created_at, updated_at`

func orJSON(raw json.RawMessage, empty string) string {
	if len(raw) == 0 {
		return empty
	}
	return string(raw)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Create inserts a new analysis into the database.
func (r *AnalysisRepository) Create(a *Analysis) error {
	return insertAnalysis(r.db, a)
}

// CreateWithFrames inserts an analysis and its landmark frames in one
// transaction, so an analysis is never stored without its frames.
func (r *AnalysisRepository) CreateWithFrames(a *Analysis, frames []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAnalysis(tx, a); err != nil {
		return err
	}
	if err := insertFrames(tx, a.ID, frames); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAnalysis(ex execer, a *Analysis) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	var form sql.NullString
	if len(a.FormAnalysis) > 0 && string(a.FormAnalysis) != "null" {
		form = sql.NullString{String: string(a.FormAnalysis), Valid: true}
	}

	_, err := ex.Exec(
		`INSERT INTO analyses (`+analysisColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Exercise, a.ExerciseName, a.Score, a.Grade, a.FrameCount, a.FPS, a.Filename, a.View,
		orJSON(a.Calculation, "{}"), form, orJSON(a.Phases, "[]"), orJSON(a.Validation, "{}"),
		a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	a := &Analysis{}
	var calc, phases, validation string
	var form sql.NullString

	err := row.Scan(&a.ID, &a.Exercise, &a.ExerciseName, &a.Score, &a.Grade, &a.FrameCount, &a.FPS,
		&a.Filename, &a.View, &calc, &form, &phases, &validation, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Calculation = json.RawMessage(calc)
	a.Phases = json.RawMessage(phases)
	a.Validation = json.RawMessage(validation)
	if form.Valid {
		a.FormAnalysis = json.RawMessage(form.String)
	}
	return a, nil
}

// GetByID retrieves an analysis by its ID.
func (r *AnalysisRepository) GetByID(id string) (*Analysis, error) {
	a, err := scanAnalysis(r.db.QueryRow(
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// where builds the WHERE clause shared by List and CountMatching.
func (f ListFilter) where() (string, []any) {
	var where []string
	var args []any
	if f.Exercise > 0 {
		where = append(where, "exercise = ?")
		args = append(args, f.Exercise)
	}
	if f.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, f.MinScore)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List retrieves analyses matching the filter, newest first.
func (r *AnalysisRepository) List(f ListFilter) ([]*Analysis, error) {
	clause, args := f.where()
	query := `SELECT ` + analysisColumns + ` FROM analyses` + clause + " ORDER BY created_at DESC, id"

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
	switch {
	case f.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(f.Offset, 0))
	case f.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []*Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return analyses, nil
}

// Replace overwrites the computed fields of an analysis after re-running it.
// Notes and the creation time are kept.
func (r *AnalysisRepository) Replace(a *Analysis) error {
	a.UpdatedAt = time.Now().UTC()

	var form sql.NullString
	if len(a.FormAnalysis) > 0 && string(a.FormAnalysis) != "null" {
		form = sql.NullString{String: string(a.FormAnalysis), Valid: true}
	}

	result, err := r.db.Exec(
		`UPDATE analyses SET score = ?, grade = ?, frame_count = ?, fps = ?, calculation = ?,
		 form_analysis = ?, phases = ?, validation = ?, updated_at = ?
		 WHERE id = ?`,
		a.Score, a.Grade, a.FrameCount, a.FPS, orJSON(a.Calculation, "{}"), form,
		orJSON(a.Phases, "[]"), orJSON(a.Validation, "{}"), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// UpdateNotes sets the free-text notes of an analysis.
func (r *AnalysisRepository) UpdateNotes(id, notes string) error {
	result, err := r.db.Exec(
		`UPDATE analyses SET notes = ?, updated_at = ? WHERE id = ?`,
		notes, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes an analysis and its frames from the database.
func (r *AnalysisRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Count returns the number of stored analyses.
func (r *AnalysisRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&n)
	return n, err
}

// CountMatching returns how many analyses match the filter's constraints,
// ignoring Limit and Offset.
func (r *AnalysisRepository) CountMatching(f ListFilter) (int, error) {
	clause, args := f.where()
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM analyses`+clause, args...).Scan(&n)
	return n, err
}

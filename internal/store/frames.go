package store

import (
	"database/sql"
	"encoding/json"
)

// FrameRepository stores the raw landmark frames behind an analysis.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Create inserts the frames of an analysis in a single transaction,
// replacing any frames already stored for it.
func (r *FrameRepository) Create(analysisID string, frames []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM analysis_frames WHERE analysis_id = ?`, analysisID); err != nil {
		return err
	}
	if err := insertFrames(tx, analysisID, frames); err != nil {
		return err
	}

	return tx.Commit()
}

func insertFrames(tx *sql.Tx, analysisID string, frames []json.RawMessage) error {
	stmt, err := tx.Prepare(`INSERT INTO analysis_frames (analysis_id, frame_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, data := range frames {
		if _, err := stmt.Exec(analysisID, i, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// GetByAnalysisID retrieves the frames of an analysis in recording order.
func (r *FrameRepository) GetByAnalysisID(analysisID string) ([]json.RawMessage, error) {
	rows, err := r.db.Query(
		`SELECT data FROM analysis_frames
		 WHERE analysis_id = ?
		 ORDER BY frame_index`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		frames = append(frames, json.RawMessage(data))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// DeleteByAnalysisID removes all frames of an analysis.
func (r *FrameRepository) DeleteByAnalysisID(analysisID string) error {
	_, err := r.db.Exec(`DELETE FROM analysis_frames WHERE analysis_id = ?`, analysisID)
	return err
}

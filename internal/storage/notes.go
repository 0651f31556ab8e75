package storage

import (
	"context"
	"fmt"

	"github.com/steward-ai/steward/pkg/models"
)

// AppendNote inserts a note. The caller assigns the id; a ts of zero means
// "now".
func (s *Store) AppendNote(ctx context.Context, note models.Note) (models.Note, error) {
	if note.ID == "" {
		return models.Note{}, fmt.Errorf("note id is required")
	}
	if note.TS == 0 {
		note.TS = s.now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, ts) VALUES (?, ?, ?, ?)`,
		note.ID, note.Title, note.Content, note.TS,
	)
	if err != nil {
		return models.Note{}, fmt.Errorf("append note: %w", err)
	}
	return note, nil
}

// ListNotes returns every note in insertion order.
func (s *Store) ListNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, ts FROM notes ORDER BY ts, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		var note models.Note
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.TS); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

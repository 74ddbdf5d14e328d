package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keyforge/keyforge/internal/interfaces"
)

// CreateNote inserts a new note
func (s *Store) CreateNote(ctx context.Context, note *interfaces.Note) error {
	query := `
		INSERT INTO notes (owner, id, title, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		note.Owner, note.ID, note.Title, note.Note, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// GetNote retrieves a note by owner and id
func (s *Store) GetNote(ctx context.Context, owner, id string) (*interfaces.Note, error) {
	query := `
		SELECT owner, id, title, note, created_at, updated_at
		FROM notes WHERE owner = $1 AND id = $2
	`

	note := &interfaces.Note{}
	err := s.db.QueryRowContext(ctx, query, owner, id).Scan(
		&note.Owner, &note.ID, &note.Title, &note.Note, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return note, nil
}

// ListNotes returns all notes for an owner
func (s *Store) ListNotes(ctx context.Context, owner string) ([]*interfaces.Note, error) {
	query := `
		SELECT owner, id, title, note, created_at, updated_at
		FROM notes WHERE owner = $1 ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*interfaces.Note
	for rows.Next() {
		note := &interfaces.Note{}
		if err := rows.Scan(&note.Owner, &note.ID, &note.Title, &note.Note, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return notes, nil
}

// UpdateNote rewrites the title and body of an existing note
func (s *Store) UpdateNote(ctx context.Context, note *interfaces.Note) error {
	query := `
		UPDATE notes
		SET title = $3, note = $4, updated_at = now()
		WHERE owner = $1 AND id = $2
	`

	result, err := s.db.ExecContext(ctx, query, note.Owner, note.ID, note.Title, note.Note)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

// DeleteNote removes a note
func (s *Store) DeleteNote(ctx context.Context, owner, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

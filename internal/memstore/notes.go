package memstore

import (
	"context"
	"sort"

	"github.com/keyforge/keyforge/internal/interfaces"
)

func (s *Store) CreateNote(_ context.Context, note *interfaces.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.notes[note.Owner]
	if !ok {
		byID = make(map[string]*interfaces.Note)
		s.notes[note.Owner] = byID
	}
	if _, exists := byID[note.ID]; exists {
		return interfaces.ErrAlreadyExists
	}

	cp := *note
	byID[note.ID] = &cp
	return nil
}

func (s *Store) GetNote(_ context.Context, owner, id string) (*interfaces.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[owner][id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	cp := *note
	return &cp, nil
}

func (s *Store) ListNotes(_ context.Context, owner string) ([]*interfaces.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := make([]*interfaces.Note, 0, len(s.notes[owner]))
	for _, note := range s.notes[owner] {
		cp := *note
		notes = append(notes, &cp)
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes, nil
}

func (s *Store) UpdateNote(_ context.Context, note *interfaces.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.notes[note.Owner][note.ID]
	if !ok {
		return interfaces.ErrNotFound
	}

	existing.Title = note.Title
	existing.Note = note.Note
	existing.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteNote(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[owner][id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(s.notes[owner], id)
	return nil
}

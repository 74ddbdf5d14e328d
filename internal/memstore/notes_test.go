package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/interfaces"
)

func TestNoteCRUD(t *testing.T) {
	ctx := context.Background()
	store := New()

	note := &interfaces.Note{
		Owner:     "alice",
		ID:        "n1",
		Title:     "first",
		Note:      "body",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateNote(ctx, note))
	assert.ErrorIs(t, store.CreateNote(ctx, note), interfaces.ErrAlreadyExists)

	got, err := store.GetNote(ctx, "alice", "n1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	// Owner scoping: another owner cannot see the note.
	_, err = store.GetNote(ctx, "bob", "n1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	note.Title = "renamed"
	require.NoError(t, store.UpdateNote(ctx, note))
	got, err = store.GetNote(ctx, "alice", "n1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	notes, err := store.ListNotes(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	require.NoError(t, store.DeleteNote(ctx, "alice", "n1"))
	assert.ErrorIs(t, store.DeleteNote(ctx, "alice", "n1"), interfaces.ErrNotFound)
	_, err = store.GetNote(ctx, "alice", "n1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestListNotesOrdered(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Now()

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.CreateNote(ctx, &interfaces.Note{
			Owner:     "alice",
			ID:        id,
			Title:     id,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	notes, err := store.ListNotes(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "c", notes[0].ID)
	assert.Equal(t, "b", notes[2].ID)
}

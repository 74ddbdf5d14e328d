package interfaces

import "context"

// ResultStore is the keyed item store holding one ResultRecord per
// request id. All mutations are conditional on the record's current
// status, which is the only coordination mechanism between workers.
type ResultStore interface {
	// Create writes a new record if and only if the id is absent.
	// Returns ErrAlreadyExists otherwise.
	Create(ctx context.Context, rec *ResultRecord) error

	// Get returns the record for the id. Returns ErrNotFound for
	// unknown ids and for records past their expiration time.
	Get(ctx context.Context, requestID string) (*ResultRecord, error)

	// MarkPending moves submitted -> pending. Returns ErrConflict when
	// the record is already pending or terminal (duplicate delivery)
	// and ErrNotFound when the record is absent or expired.
	MarkPending(ctx context.Context, requestID string) error

	// Complete moves pending -> complete and stores the encoded key
	// material. Returns ErrConflict unless the record is pending.
	Complete(ctx context.Context, requestID, publicKey, privateKey string) error

	// Fail moves pending -> error and stores the failure message.
	// Returns ErrConflict unless the record is pending.
	Fail(ctx context.Context, requestID, errorMessage string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// NoteStore handles single-item note CRUD, scoped by owner.
type NoteStore interface {
	CreateNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, owner, id string) (*Note, error)
	ListNotes(ctx context.Context, owner string) ([]*Note, error)
	UpdateNote(ctx context.Context, note *Note) error
	DeleteNote(ctx context.Context, owner, id string) error
}

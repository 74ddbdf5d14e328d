package interfaces

import "time"

// DefaultOwner is used when a caller does not supply an owner of its
// own. Store keys are always owner-scoped, so swapping this for a real
// tenant identifier needs no schema change.
const DefaultOwner = "global"

// Note is a single note item, keyed by (owner, id).
type Note struct {
	Owner     string    `json:"owner"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

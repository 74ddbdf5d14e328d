package interfaces

import (
	"fmt"
	"time"
)

// KeyType identifies the key algorithm requested by a client.
type KeyType string

const (
	KeyTypeRSA     KeyType = "rsa"
	KeyTypeEd25519 KeyType = "ed25519"
)

// Status represents the current state of a key generation request
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// statusRank orders statuses so that transitions only ever move forward.
var statusRank = map[Status]int{
	StatusSubmitted: 0,
	StatusPending:   1,
	StatusComplete:  2,
	StatusError:     2,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransition reports whether a record may move from one status to
// another. The only legal moves are submitted -> pending and
// pending -> complete/error; everything else is rejected, which is what
// makes duplicate queue deliveries converge to a no-op.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusSubmitted:
		return to == StatusPending
	case StatusPending:
		return to == StatusComplete || to == StatusError
	default:
		return false
	}
}

// JobRequest is the queue message payload for one key generation job.
// It is immutable once enqueued.
type JobRequest struct {
	RequestID string  `json:"request_id"`
	KeyType   KeyType `json:"key_type"`
	KeyBits   int     `json:"key_bits,omitempty"`
}

// Normalize fills in defaults: a missing key type becomes rsa, a missing
// rsa bit size becomes 2048, and ed25519 discards any supplied bit size.
func (r *JobRequest) Normalize() {
	if r.KeyType == "" {
		r.KeyType = KeyTypeRSA
	}
	switch r.KeyType {
	case KeyTypeRSA:
		if r.KeyBits == 0 {
			r.KeyBits = 2048
		}
	case KeyTypeEd25519:
		r.KeyBits = 0
	}
}

// Validate checks the key type and bit size combination. Callers should
// Normalize first; validation failures are permanent.
func (r *JobRequest) Validate() error {
	switch r.KeyType {
	case KeyTypeRSA:
		if r.KeyBits != 2048 && r.KeyBits != 4096 {
			return &ValidationError{Reason: fmt.Sprintf("key_bits must be 2048 or 4096 for rsa, got %d", r.KeyBits)}
		}
	case KeyTypeEd25519:
		// bit size is ignored
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown key_type %q", r.KeyType)}
	}
	return nil
}

// String returns a string representation of the request
func (r *JobRequest) String() string {
	return fmt.Sprintf("JobRequest{ID: %s, Type: %s, Bits: %d}", r.RequestID, r.KeyType, r.KeyBits)
}

// ResultRecord is the single source of truth for the state of one
// request, keyed by RequestID in the result store.
type ResultRecord struct {
	RequestID    string    `json:"request_id"`
	Status       Status    `json:"status"`
	KeyType      KeyType   `json:"key_type"`
	KeyBits      int       `json:"key_bits,omitempty"`
	PublicKey    string    `json:"public_key_b64,omitempty"`
	PrivateKey   string    `json:"private_key_b64,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the record has passed its expiration time.
func (r *ResultRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// String returns a string representation of the record
func (r *ResultRecord) String() string {
	return fmt.Sprintf("ResultRecord{ID: %s, Status: %s, Type: %s}", r.RequestID, r.Status, r.KeyType)
}

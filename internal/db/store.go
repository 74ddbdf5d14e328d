package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
)

// Store implements the ResultStore and NoteStore interfaces on
// PostgreSQL. Status transitions are conditional UPDATEs guarded by the
// expected prior status, which is what makes concurrent workers safe
// without any locking of our own.
type Store struct {
	db *sql.DB
}

// NewStore creates a new database store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts the record only if the request id is absent.
func (s *Store) Create(ctx context.Context, rec *interfaces.ResultRecord) error {
	query := `
		INSERT INTO key_requests (request_id, status, key_type, key_bits, public_key, private_key, error_message, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (request_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		rec.RequestID, rec.Status, rec.KeyType, rec.KeyBits,
		rec.PublicKey, rec.PrivateKey, rec.ErrorMessage,
		rec.CreatedAt, rec.ExpiresAt, rec.UpdatedAt)
	if err != nil {
		return interfaces.Transient(fmt.Errorf("failed to create record: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return interfaces.ErrAlreadyExists
	}

	return nil
}

// Get retrieves an unexpired record by request id.
func (s *Store) Get(ctx context.Context, requestID string) (*interfaces.ResultRecord, error) {
	query := `
		SELECT request_id, status, key_type, key_bits, public_key, private_key, error_message, created_at, expires_at, updated_at
		FROM key_requests
		WHERE request_id = $1 AND expires_at > now()
	`

	rec := &interfaces.ResultRecord{}
	err := s.db.QueryRowContext(ctx, query, requestID).Scan(
		&rec.RequestID, &rec.Status, &rec.KeyType, &rec.KeyBits,
		&rec.PublicKey, &rec.PrivateKey, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrNotFound
		}
		return nil, interfaces.Transient(fmt.Errorf("failed to get record: %w", err))
	}

	return rec, nil
}

func (s *Store) MarkPending(ctx context.Context, requestID string) error {
	query := `
		UPDATE key_requests
		SET status = $2, updated_at = now()
		WHERE request_id = $1 AND status = $3 AND expires_at > now()
	`
	return s.conditionalUpdate(ctx, requestID, query,
		requestID, interfaces.StatusPending, interfaces.StatusSubmitted)
}

func (s *Store) Complete(ctx context.Context, requestID, publicKey, privateKey string) error {
	query := `
		UPDATE key_requests
		SET status = $2, public_key = $3, private_key = $4, error_message = '', updated_at = now()
		WHERE request_id = $1 AND status = $5 AND expires_at > now()
	`
	return s.conditionalUpdate(ctx, requestID, query,
		requestID, interfaces.StatusComplete, publicKey, privateKey, interfaces.StatusPending)
}

func (s *Store) Fail(ctx context.Context, requestID, errorMessage string) error {
	query := `
		UPDATE key_requests
		SET status = $2, error_message = $3, updated_at = now()
		WHERE request_id = $1 AND status = $4 AND expires_at > now()
	`
	return s.conditionalUpdate(ctx, requestID, query,
		requestID, interfaces.StatusError, errorMessage, interfaces.StatusPending)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// conditionalUpdate runs a status-guarded UPDATE and maps a zero row
// count to ErrConflict (record exists in another status) or ErrNotFound
// (record absent or expired).
func (s *Store) conditionalUpdate(ctx context.Context, requestID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return interfaces.Transient(fmt.Errorf("failed to update record: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM key_requests WHERE request_id = $1 AND expires_at > now())`,
		requestID).Scan(&exists)
	if err != nil {
		return interfaces.Transient(fmt.Errorf("failed to check record: %w", err))
	}
	if exists {
		return interfaces.ErrConflict
	}
	return interfaces.ErrNotFound
}

// SweepExpired deletes records past their expiration time.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM key_requests WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired records: %w", err)
	}
	return result.RowsAffected()
}

// StartSweeper evicts expired records on the given interval until ctx
// is canceled. Postgres has no native per-row TTL, so eviction runs as
// a background job owned by the store.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.SweepExpired(ctx)
				if err != nil {
					logger.Logger.Error().Err(err).Msg("Failed to sweep expired records")
					continue
				}
				if removed > 0 {
					logger.Logger.Info().Int64("removed", removed).Msg("Evicted expired records")
				}
			}
		}
	}()
}

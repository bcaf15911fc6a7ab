package ledger

import (
	"context"
	"errors"
)

var (
	// ErrIO wraps any failure reading or writing the backing store.
	ErrIO = errors.New("ledger i/o failure")
	// ErrCorrupt means the backing file exists but cannot be parsed. The
	// file is left untouched so no ownership records are lost.
	ErrCorrupt = errors.New("ledger file is corrupt")
)

// Store persists ownership records keyed by user id. A user with no record
// reads as an empty Record, never as an error.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	// Put replaces the user's record. A record without entries deletes it.
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, userID string) error
	Users(ctx context.Context) ([]string, error)
}

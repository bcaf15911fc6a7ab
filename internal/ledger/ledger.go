// Package ledger records which chat user created which proxy.
package ledger

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// Ledger wraps a Store with per-user serialisation. A caller that reads a
// record, talks to the control-plane and then writes the record back holds
// Lock(userID) for the whole sequence so concurrent commands of the same
// user cannot lose each other's updates. Ledger methods do not lock.
type Ledger struct {
	store Store
	locks *xsync.Map[string, *sync.Mutex]
}

// New returns a ledger over store.
func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: xsync.NewMap[string, *sync.Mutex](),
	}
}

// Lock acquires the user's lock and returns the matching unlock func.
func (l *Ledger) Lock(userID string) (unlock func()) {
	mu, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// Entries returns the user's entries, oldest first.
func (l *Ledger) Entries(ctx context.Context, userID string) ([]Entry, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.Entries, nil
}

// Find returns the user's entry for domain.
func (l *Ledger) Find(ctx context.Context, userID, domain string) (Entry, bool, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return Entry{}, false, err
	}
	e, _, ok := rec.Find(domain)
	return e, ok, nil
}

// Append adds e to the user's record.
func (l *Ledger) Append(ctx context.Context, userID string, e Entry) error {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := rec.Add(e); err != nil {
		return err
	}
	return l.store.Put(ctx, rec)
}

// Remove drops the user's entry for domain, reporting whether it existed.
func (l *Ledger) Remove(ctx context.Context, userID, domain string) (bool, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !rec.Remove(domain) {
		return false, nil
	}
	return true, l.store.Put(ctx, rec)
}

// Import copies every record of src into the ledger's store.
func (l *Ledger) Import(ctx context.Context, src Store) (int, error) {
	return Copy(ctx, l.store, src)
}

// Users lists every user with at least one entry.
func (l *Ledger) Users(ctx context.Context) ([]string, error) {
	return l.store.Users(ctx)
}

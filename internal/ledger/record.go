package ledger

import (
	"errors"
	"time"
)

// ErrDuplicate is returned when a user already owns an entry for the domain.
var ErrDuplicate = errors.New("domain already in ledger")

// Entry records one proxy a user created through the bot.
type Entry struct {
	ID         int       `json:"id"`
	Domain     string    `json:"domain"`
	TargetIP   string    `json:"targetIp"`
	TargetPort int       `json:"targetPort"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Record is the ordered list of entries owned by one user, oldest first.
type Record struct {
	UserID  string
	Entries []Entry
}

// Find returns the entry for domain and its index.
func (r *Record) Find(domain string) (Entry, int, bool) {
	for i, e := range r.Entries {
		if e.Domain == domain {
			return e, i, true
		}
	}
	return Entry{}, -1, false
}

// Add appends e unless the user already has an entry for its domain.
func (r *Record) Add(e Entry) error {
	if _, _, ok := r.Find(e.Domain); ok {
		return ErrDuplicate
	}
	r.Entries = append(r.Entries, e)
	return nil
}

// Remove drops the entry for domain and reports whether one existed.
func (r *Record) Remove(domain string) bool {
	_, i, ok := r.Find(domain)
	if !ok {
		return false
	}
	r.Entries = append(r.Entries[:i:i], r.Entries[i+1:]...)
	return true
}

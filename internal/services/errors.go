package services

import (
	"errors"
	"fmt"
)

// ErrNotOwned is returned when the calling user has no ledger entry for the
// domain. It is a not-found kind: ownership is only what the ledger records.
var ErrNotOwned = errors.New("proxy not found in your records")

// DNSMismatchError means the domain does not resolve to the reverse proxy.
// Observed is empty when the domain did not resolve at all.
type DNSMismatchError struct {
	Domain   string
	Observed string
	Required string
}

func (e *DNSMismatchError) Error() string {
	if e.Observed == "" {
		return fmt.Sprintf("%s does not resolve, it must point to %s", e.Domain, e.Required)
	}
	return fmt.Sprintf("%s resolves to %s, it must point to %s", e.Domain, e.Observed, e.Required)
}

// LedgerWriteError reports that the remote change succeeded but recording it
// locally failed. The proxy exists on the control-plane but is untracked.
type LedgerWriteError struct {
	Domain string
	Err    error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("proxy %s was created but could not be recorded: %v", e.Domain, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

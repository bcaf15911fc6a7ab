package ledger

import (
	"context"
	"fmt"
)

// Copy writes every record in src to dst and returns how many users were
// copied. Records already present in dst for the same user are replaced.
func Copy(ctx context.Context, dst, src Store) (int, error) {
	users, err := src.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source users: %w", err)
	}
	n := 0
	for _, userID := range users {
		rec, err := src.Get(ctx, userID)
		if err != nil {
			return n, fmt.Errorf("read source user %s: %w", userID, err)
		}
		if len(rec.Entries) == 0 {
			continue
		}
		if err := dst.Put(ctx, rec); err != nil {
			return n, fmt.Errorf("write user %s: %w", userID, err)
		}
		n++
	}
	return n, nil
}

// internal/pkg/dedupe/dedupe.go
package dedupe

import "context"

// Cache remembers recently handled ids. It is a fast path in front of the
// durable ledger and may forget entries at any time.
type Cache interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

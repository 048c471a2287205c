// Package tx abstracts transactions away from the stores. The active
// transaction travels in the context; stores called with that context join it.
package tx

import (
	"context"
)

// Manager runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise. A call inside a running transaction joins it.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager is implemented by managers that can also open read-only
// snapshots. Listings use it when available.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

package memory

import (
	"context"

	"bread/internal/core/tx"
)

var _ tx.Manager = (*TxManager)(nil)

type txKey struct{}

// TxManager serializes transactions against a Store and rolls the store back
// to its state at Begin when fn fails. Nested calls join the outer transaction.
type TxManager struct {
	store *Store
	txMu  chan struct{}
}

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store, txMu: make(chan struct{}, 1)}
}

// RunInTransaction executes fn within a transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	select {
	case m.txMu <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.txMu }()

	m.store.mu.RLock()
	saved := m.store.snapshot()
	m.store.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.mu.Lock()
		m.store.tables = saved
		m.store.mu.Unlock()
		return err
	}
	return nil
}

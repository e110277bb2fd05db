package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceAllocator hands out consecutive nonces for one signing key.
// Concurrent lifecycles sharing a key must draw from the same allocator;
// the mutex is the only serialization point between them.
type NonceAllocator struct {
	backend Backend
	account common.Address

	mu     sync.Mutex
	next   uint64
	primed bool
}

// NewNonceAllocator creates an allocator for account.
func NewNonceAllocator(backend Backend, account common.Address) *NonceAllocator {
	return &NonceAllocator{backend: backend, account: account}
}

// Next reserves the next nonce, seeding from the node's pending count
// on first use.
func (a *NonceAllocator) Next(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.primed {
		pending, err := a.backend.PendingNonceAt(ctx, a.account)
		if err != nil {
			return 0, err
		}
		a.next = pending
		a.primed = true
	}

	n := a.next
	a.next++
	return n, nil
}

// Return hands back a nonce whose transaction was never accepted by the
// node, so the sequence stays gapless. Only the most recently issued
// nonce can be returned.
func (a *NonceAllocator) Return(nonce uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.primed && a.next == nonce+1 {
		a.next = nonce
	}
}

// Reset forgets the cached sequence; the next call re-reads the pending
// count from the node.
func (a *NonceAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.primed = false
}

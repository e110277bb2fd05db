package chain

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestNonceAllocatorSequence(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{nonce: 7}
	alloc := NewNonceAllocator(backend, common.Address{})

	for want := uint64(7); want < 10; want++ {
		got, err := alloc.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestNonceAllocatorReturn(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{nonce: 3}
	alloc := NewNonceAllocator(backend, common.Address{})

	n, err := alloc.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	alloc.Return(n)

	again, err := alloc.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(3), again)

	// Returning a stale nonce is a no-op.
	alloc.Return(1)
	next, err := alloc.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(4), next)
}

func TestNonceAllocatorConcurrentUniqueness(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{nonce: 0}
	alloc := NewNonceAllocator(backend, common.Address{})

	const n = 64
	var wg sync.WaitGroup
	results := make(chan uint64, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce, err := alloc.Next(context.Background())
			require.NoError(t, err)
			results <- nonce
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, n)
	for nonce := range results {
		require.False(t, seen[nonce], "nonce %d issued twice", nonce)
		seen[nonce] = true
	}
	require.Len(t, seen, n)
}

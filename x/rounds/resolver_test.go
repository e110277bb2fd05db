package rounds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/chain/contracts"
)

type stubEpochSource struct {
	params contracts.EpochParams
	err    error
	calls  int
}

func (s *stubEpochSource) ReadEpochParams(context.Context, contracts.Caller) (contracts.EpochParams, error) {
	s.calls++
	return s.params, s.err
}

func TestRoundOfFromChainParams(t *testing.T) {
	t.Parallel()

	source := &stubEpochSource{params: contracts.EpochParams{
		EpochStart:    1658429073,
		EpochDuration: 90,
		HasParams:     true,
	}}
	r := NewResolver(nil, source, DefaultConfig(), zerolog.Nop())

	// 905 seconds into the epoch is ten whole rounds in.
	round, err := r.RoundOf(context.Background(), 1658429073+905)
	require.NoError(t, err)
	require.Equal(t, uint64(10), round.ID)
	require.False(t, round.Degraded)
	require.Equal(t, uint64(90), round.EpochDuration)

	// An exact boundary belongs to the round it opens.
	round, err = r.RoundOf(context.Background(), 1658429073+900)
	require.NoError(t, err)
	require.Equal(t, uint64(10), round.ID)
}

func TestRoundOfCachesChainRead(t *testing.T) {
	t.Parallel()

	source := &stubEpochSource{params: contracts.EpochParams{
		EpochStart:    1658429073,
		EpochDuration: 90,
		HasParams:     true,
	}}
	r := NewResolver(nil, source, DefaultConfig(), zerolog.Nop())

	for ts := uint64(1658429073); ts < 1658429073+1000; ts += 100 {
		_, err := r.RoundOf(context.Background(), ts)
		require.NoError(t, err)
	}
	require.Equal(t, 1, source.calls)
}

func TestRoundOfNonDecreasing(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, nil, Config{EpochStart: 1658429073, EpochDuration: 90}, zerolog.Nop())

	var prev uint64
	for ts := uint64(1658429073); ts < 1658429073+10_000; ts += 37 {
		round, err := r.RoundOf(context.Background(), ts)
		require.NoError(t, err)
		require.GreaterOrEqual(t, round.ID, prev)
		prev = round.ID
	}
}

func TestRoundOfFallsBackDegraded(t *testing.T) {
	t.Parallel()

	source := &stubEpochSource{err: errors.New("execution reverted")}
	r := NewResolver(nil, source, DefaultConfig(), zerolog.Nop())

	round, err := r.RoundOf(context.Background(), FallbackEpochStart+905)
	require.NoError(t, err)
	require.Equal(t, uint64(10), round.ID)
	require.True(t, round.Degraded)
	require.Equal(t, FallbackEpochStart, round.EpochStart)
	require.Equal(t, FallbackEpochDuration, round.EpochDuration)
}

func TestRoundOfNilSourceDegraded(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, nil, DefaultConfig(), zerolog.Nop())

	round, err := r.RoundOf(context.Background(), FallbackEpochStart)
	require.NoError(t, err)
	require.Equal(t, uint64(0), round.ID)
	require.True(t, round.Degraded)
}

func TestRoundOfBeforeEpochStart(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, nil, Config{EpochStart: 1658429073, EpochDuration: 90}, zerolog.Nop())

	_, err := r.RoundOf(context.Background(), 1658429072)
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindRoundDegraded, kind)
}

func TestRoundOfAnchorsToCurrentRoundID(t *testing.T) {
	t.Parallel()

	source := &stubEpochSource{params: contracts.EpochParams{
		CurrentRound: 991234,
		HasCurrent:   true,
	}}
	r := NewResolver(nil, source, DefaultConfig(), zerolog.Nop())

	nowTs := uint64(1658429073 + 991234*90)
	r.now = func() time.Time { return time.Unix(int64(nowTs), 0) }

	// A block mined right now belongs to the reported current round,
	// and the answer is not degraded.
	round, err := r.RoundOf(context.Background(), nowTs)
	require.NoError(t, err)
	require.Equal(t, uint64(991234), round.ID)
	require.False(t, round.Degraded)
	require.Equal(t, uint64(90), round.EpochDuration)

	// One epoch later lands in the next round; the anchor is cached.
	round, err = r.RoundOf(context.Background(), nowTs+90)
	require.NoError(t, err)
	require.Equal(t, uint64(991235), round.ID)
	require.Equal(t, 1, source.calls)
}

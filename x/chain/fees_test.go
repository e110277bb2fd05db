package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/attest-network/attestor/x/attestation"
)

// stubBackend is a programmable Backend for tests.
type stubBackend struct {
	mu sync.Mutex

	chainID  *big.Int
	nonce    uint64
	gasPrice *big.Int
	gasLimit uint64
	balance  *big.Int

	feeHistory    *FeeHistory
	feeHistoryErr error
	gasPriceErr   error
	estimateErr   error

	callContract func(msg ethereum.CallMsg) ([]byte, error)
	rawCall      func(result any, method string, args []any) error

	sent []*types.Transaction
}

func (b *stubBackend) ChainID(context.Context) (*big.Int, error) {
	if b.chainID == nil {
		return big.NewInt(114), nil
	}
	return b.chainID, nil
}

func (b *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if b.gasPriceErr != nil {
		return nil, b.gasPriceErr
	}
	if b.gasPrice == nil {
		return big.NewInt(25_000_000_000), nil
	}
	return b.gasPrice, nil
}

func (b *stubBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	if b.gasLimit == 0 {
		return 100_000, nil
	}
	return b.gasLimit, nil
}

func (b *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *stubBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if b.callContract != nil {
		return b.callContract(msg)
	}
	return nil, errors.New("no contract stub")
}

func (b *stubBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if b.balance == nil {
		return big.NewInt(1_000_000_000_000_000_000), nil
	}
	return b.balance, nil
}

func (b *stubBackend) RawCall(_ context.Context, result any, method string, args ...any) error {
	if method == "eth_feeHistory" {
		if b.feeHistoryErr != nil {
			return b.feeHistoryErr
		}
		if b.feeHistory != nil {
			*(result.(*FeeHistory)) = *b.feeHistory
			return nil
		}
		return errors.New("no fee history stub")
	}
	if b.rawCall != nil {
		return b.rawCall(result, method, args)
	}
	return errors.New("no raw call stub")
}

func (b *stubBackend) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func (b *stubBackend) sentAt(i int) *types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[i]
}

func hexBig(v int64) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(v))
}

func TestFeeQuoteFromHistory(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		feeHistory: &FeeHistory{
			BaseFeePerGas: []*hexutil.Big{hexBig(10_000_000_000), hexBig(12_000_000_000)},
			Reward:        [][]*hexutil.Big{{hexBig(1_000_000_000)}, {hexBig(7_000_000_000)}},
		},
	}
	est := NewFeeEstimator(backend, DefaultConfig(), zerolog.Nop())

	quote, err := est.Quote(context.Background())
	require.NoError(t, err)

	// priority = max(7 gwei observed, 5 gwei floor) = 7 gwei
	require.Equal(t, big.NewInt(7_000_000_000), quote.PriorityFee)
	// maxFee = 2*12 + 3*7 = 45 gwei
	require.Equal(t, big.NewInt(45_000_000_000), quote.MaxFee)
}

func TestFeeQuoteFloorsNearZeroRewards(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		feeHistory: &FeeHistory{
			BaseFeePerGas: []*hexutil.Big{hexBig(1_000_000_000)},
			Reward:        [][]*hexutil.Big{{hexBig(1)}},
		},
	}
	est := NewFeeEstimator(backend, DefaultConfig(), zerolog.Nop())

	quote, err := est.Quote(context.Background())
	require.NoError(t, err)

	require.Equal(t, big.NewInt(5_000_000_000), quote.PriorityFee)
	require.Equal(t, big.NewInt(17_000_000_000), quote.MaxFee)
}

func TestFeeQuoteFallsBackToGasPrice(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		feeHistoryErr: errors.New("method not found"),
		gasPrice:      big.NewInt(30_000_000_000),
	}
	est := NewFeeEstimator(backend, DefaultConfig(), zerolog.Nop())

	quote, err := est.Quote(context.Background())
	require.NoError(t, err)

	require.Equal(t, big.NewInt(5_000_000_000), quote.PriorityFee)
	// maxFee = 2*30 + 3*5 = 75 gwei
	require.Equal(t, big.NewInt(75_000_000_000), quote.MaxFee)
}

func TestFeeQuoteErrorsWhenFeeMarketUnreachable(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		feeHistoryErr: errors.New("down"),
		gasPriceErr:   errors.New("down"),
	}
	est := NewFeeEstimator(backend, DefaultConfig(), zerolog.Nop())

	// No invented base fee when both sources fail: the caller gets a
	// retryable network error instead of a quote.
	_, err := est.Quote(context.Background())
	require.Error(t, err)
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindNetwork, kind)
}

func TestFeeQuoteErrorsOnZeroGasPrice(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		feeHistoryErr: errors.New("down"),
		gasPrice:      big.NewInt(0),
	}
	est := NewFeeEstimator(backend, DefaultConfig(), zerolog.Nop())

	_, err := est.Quote(context.Background())
	require.Error(t, err)
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindNetwork, kind)
}

package chain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/chain/contracts"
)

var (
	hubAddr       = common.HexToAddress("0x1000000000000000000000000000000000000001")
	feeConfigAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
)

type submitterHarness struct {
	backend   *stubBackend
	submitter *Submitter
	feeCalls  *int
}

func newSubmitterHarness(t *testing.T, backend *stubBackend, cfg Config) *submitterHarness {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	hub, err := contracts.NewHubBinding(hubAddr)
	require.NoError(t, err)
	feeConfig, err := contracts.NewFeeConfigBinding(feeConfigAddr)
	require.NoError(t, err)

	feeCalls := 0
	prevCallContract := backend.callContract
	backend.callContract = func(msg ethereum.CallMsg) ([]byte, error) {
		if msg.To != nil && *msg.To == feeConfigAddr {
			feeCalls++
			return common.LeftPadBytes(big.NewInt(1_000_000_000_000_000).Bytes(), 32), nil
		}
		if prevCallContract != nil {
			return prevCallContract(msg)
		}
		return nil, ethereum.NotFound
	}

	if backend.feeHistory == nil {
		backend.feeHistory = &FeeHistory{
			BaseFeePerGas: []*hexutil.Big{hexBig(10_000_000_000)},
			Reward:        [][]*hexutil.Big{{hexBig(6_000_000_000)}},
		}
	}

	fees := NewFeeEstimator(backend, cfg, zerolog.Nop())
	nonces := NewNonceAllocator(backend, crypto.PubkeyToAddress(key.PublicKey))

	sub, err := NewSubmitter(backend, hub, feeConfig, fees, nonces, key, big.NewInt(114), cfg, zerolog.Nop())
	require.NoError(t, err)

	return &submitterHarness{backend: backend, submitter: sub, feeCalls: &feeCalls}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ReceiptTimeout = 30 * time.Millisecond
	cfg.ReceiptPoll = 5 * time.Millisecond
	cfg.CallTimeout = time.Second
	cfg.MaxReplacements = 3
	return cfg
}

func TestSubmitConfirmedSuccess(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{nonce: 12}
	backend.rawCall = func(result any, method string, _ []any) error {
		switch method {
		case "eth_getTransactionReceipt":
			if backend.sentCount() == 0 {
				return nil
			}
			*(result.(**RawReceipt)) = &RawReceipt{
				Status:      1,
				BlockNumber: hexBig(4242),
				TxHash:      backend.sentAt(0).Hash(),
			}
			return nil
		case "eth_getBlockByNumber":
			*(result.(**rawBlockHeader)) = &rawBlockHeader{Timestamp: 1658429973}
			return nil
		}
		return ethereum.NotFound
	}

	h := newSubmitterHarness(t, backend, fastConfig())

	result, err := h.submitter.Submit(context.Background(), []byte{0xaa, 0xbb})
	require.NoError(t, err)

	require.Equal(t, attestation.ReceiptSuccess, result.ReceiptStatus)
	require.Equal(t, uint64(12), result.Nonce)
	require.Equal(t, uint64(4242), result.BlockNumber)
	require.Equal(t, uint64(1658429973), result.BlockTimestamp)
	require.Equal(t, 0, result.Replacements)
	require.Equal(t, 1, backend.sentCount())

	// The paid value is the live on-chain request fee.
	sent := backend.sentAt(0)
	require.Equal(t, big.NewInt(1_000_000_000_000_000), sent.Value())
	require.Equal(t, 1, *h.feeCalls)
}

func TestSubmitReplacesStuckTransaction(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{nonce: 5}
	backend.rawCall = func(result any, method string, _ []any) error {
		switch method {
		case "eth_getTransactionReceipt":
			// Never mined.
			return nil
		case "eth_getTransactionByHash":
			*(result.(**RawTransaction)) = &RawTransaction{Nonce: 5}
			return nil
		}
		return ethereum.NotFound
	}

	h := newSubmitterHarness(t, backend, fastConfig())

	result, err := h.submitter.Submit(context.Background(), []byte{0x01})

	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindTimeout, kind)
	require.Equal(t, 3, result.Replacements)

	// Original broadcast plus exactly three replacements.
	require.Equal(t, 4, backend.sentCount())

	// Every replacement reuses the nonce and at least doubles the tip.
	prevTip := backend.sentAt(0).GasTipCap()
	for i := 1; i < 4; i++ {
		tx := backend.sentAt(i)
		require.Equal(t, uint64(5), tx.Nonce())
		doubled := new(big.Int).Mul(prevTip, big.NewInt(2))
		require.True(t, tx.GasTipCap().Cmp(doubled) >= 0,
			"replacement %d tip %s below 2x previous %s", i, tx.GasTipCap(), prevTip)
		prevTip = tx.GasTipCap()
	}

	// The request fee was fetched live before every broadcast.
	require.Equal(t, 4, *h.feeCalls)
}

func TestSubmitRevertedIsNotResubmitted(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	backend.rawCall = func(result any, method string, _ []any) error {
		switch method {
		case "eth_getTransactionReceipt":
			if backend.sentCount() == 0 {
				return nil
			}
			*(result.(**RawReceipt)) = &RawReceipt{
				Status:      0,
				BlockNumber: hexBig(100),
				TxHash:      backend.sentAt(0).Hash(),
			}
			return nil
		}
		return ethereum.NotFound
	}

	h := newSubmitterHarness(t, backend, fastConfig())

	result, err := h.submitter.Submit(context.Background(), []byte{0x01})

	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindTransactionReverted, kind)
	require.Equal(t, attestation.ReceiptFailed, result.ReceiptStatus)
	require.NotEmpty(t, result.TxID)
	require.Equal(t, 1, backend.sentCount())
}

func TestSubmitCancelledPromptly(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	backend.rawCall = func(result any, method string, _ []any) error {
		if method == "eth_getTransactionReceipt" {
			return nil
		}
		return ethereum.NotFound
	}

	cfg := fastConfig()
	cfg.ReceiptTimeout = 10 * time.Second
	h := newSubmitterHarness(t, backend, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := h.submitter.Submit(ctx, []byte{0x01})
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindCancelled, kind)
	require.Less(t, time.Since(start), time.Second)
}

func TestSubmitZeroFeeRejected(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	backend.callContract = func(msg ethereum.CallMsg) ([]byte, error) {
		return make([]byte, 32), nil
	}
	backend.feeHistory = &FeeHistory{
		BaseFeePerGas: []*hexutil.Big{hexBig(10_000_000_000)},
		Reward:        [][]*hexutil.Big{{hexBig(1_000_000_000)}},
	}

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hub, err := contracts.NewHubBinding(hubAddr)
	require.NoError(t, err)
	feeConfig, err := contracts.NewFeeConfigBinding(feeConfigAddr)
	require.NoError(t, err)

	cfg := fastConfig()
	fees := NewFeeEstimator(backend, cfg, zerolog.Nop())
	nonces := NewNonceAllocator(backend, crypto.PubkeyToAddress(key.PublicKey))
	sub, err := NewSubmitter(backend, hub, feeConfig, fees, nonces, key, big.NewInt(114), cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = sub.Submit(context.Background(), []byte{0x01})
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindInsufficientFee, kind)
	require.Equal(t, 0, backend.sentCount())
}

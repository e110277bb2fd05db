package chain

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/x/attestation"
)

var gwei = big.NewInt(1_000_000_000)

// FeeQuote is a pair of EIP-1559 fee caps. Never zero-valued.
type FeeQuote struct {
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// FeeEstimator derives fee-market parameters from recent chain history.
// The max fee carries enough headroom to outlive several base-fee
// increases before a replacement becomes necessary.
type FeeEstimator struct {
	backend    Backend
	floor      *big.Int
	blocks     uint64
	percentile float64
	log        zerolog.Logger
}

// NewFeeEstimator builds an estimator with the configured tip floor.
func NewFeeEstimator(backend Backend, cfg Config, log zerolog.Logger) *FeeEstimator {
	floorGwei := cfg.PriorityFeeFloorGwei
	if floorGwei == 0 {
		floorGwei = DefaultConfig().PriorityFeeFloorGwei
	}
	blocks := cfg.FeeHistoryBlocks
	if blocks == 0 {
		blocks = DefaultConfig().FeeHistoryBlocks
	}
	percentile := cfg.RewardPercentile
	if percentile == 0 {
		percentile = DefaultConfig().RewardPercentile
	}

	return &FeeEstimator{
		backend:    backend,
		floor:      new(big.Int).Mul(new(big.Int).SetUint64(floorGwei), gwei),
		blocks:     blocks,
		percentile: percentile,
		log:        log.With().Str("component", "fee-estimator").Logger(),
	}
}

// Floor returns the configured minimum priority fee in wei.
func (e *FeeEstimator) Floor() *big.Int {
	return new(big.Int).Set(e.floor)
}

// Quote derives (maxFee, priorityFee) from recent fee history, falling
// back to the node's single gas price when history is unavailable.
func (e *FeeEstimator) Quote(ctx context.Context) (FeeQuote, error) {
	hist, err := RecentFeeHistory(ctx, e.backend, e.blocks, e.percentile)
	if err == nil {
		if base := hist.lastBaseFee(); base != nil && base.Sign() > 0 {
			tip := hist.lastReward()
			quote := e.compose(base, tip)
			e.log.Debug().
				Str("base_fee", base.String()).
				Str("priority_fee", quote.PriorityFee.String()).
				Str("max_fee", quote.MaxFee.String()).
				Msg("fee quote from history")
			return quote, nil
		}
	}

	// Fallback: the network's current gas price stands in for the base
	// fee, with the same floor and headroom arithmetic.
	base, gpErr := e.backend.SuggestGasPrice(ctx)
	if gpErr != nil || base == nil || base.Sign() <= 0 {
		ferr := attestation.NewError(attestation.ErrorKindNetwork,
			"fee market unreachable, no usable base fee")
		if err != nil {
			ferr = ferr.WithContext("fee_history_err", err.Error())
		}
		if gpErr != nil {
			ferr = ferr.WithCause(gpErr)
		}
		return FeeQuote{}, ferr
	}
	quote := e.compose(base, nil)
	e.log.Warn().
		AnErr("fee_history_err", err).
		Str("base_fee", base.String()).
		Str("priority_fee", quote.PriorityFee.String()).
		Str("max_fee", quote.MaxFee.String()).
		Msg("fee history unavailable, quoting from gas price")
	return quote, nil
}

// compose applies the floor and headroom formula:
// priority = max(tip, floor); maxFee = 2*base + 3*priority.
func (e *FeeEstimator) compose(base, tip *big.Int) FeeQuote {
	priority := new(big.Int).Set(e.floor)
	if tip != nil && tip.Cmp(priority) > 0 {
		priority = new(big.Int).Set(tip)
	}

	maxFee := new(big.Int).Mul(base, big.NewInt(2))
	maxFee.Add(maxFee, new(big.Int).Mul(priority, big.NewInt(3)))

	return FeeQuote{MaxFee: maxFee, PriorityFee: priority}
}

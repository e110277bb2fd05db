package rounds

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/chain/contracts"
)

// EpochSource resolves voting epoch parameters from the chain. It is
// satisfied by the systems manager binding and replaced in tests.
type EpochSource interface {
	ReadEpochParams(ctx context.Context, caller contracts.Caller) (contracts.EpochParams, error)
}

// Resolver maps block timestamps to voting rounds. Epoch parameters are
// read from the systems manager contract once and cached; when the
// contract is unreachable the resolver falls back to the static network
// constants and marks every derived round as degraded.
type Resolver struct {
	caller contracts.Caller
	source EpochSource
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached *epochParams
}

type epochParams struct {
	start    uint64
	duration uint64
	degraded bool
}

// NewResolver builds a resolver over the given systems manager source.
// A nil source forces static fallback immediately, which is the right
// wiring when registry resolution already failed at startup.
func NewResolver(caller contracts.Caller, source EpochSource, cfg Config, log zerolog.Logger) *Resolver {
	return &Resolver{
		caller: caller,
		source: source,
		cfg:    cfg,
		log:    log.With().Str("component", "rounds").Logger(),
		now:    time.Now,
	}
}

// RoundOf resolves the voting round containing the given block
// timestamp. The round id is the number of whole epochs elapsed since
// the epoch start.
func (r *Resolver) RoundOf(ctx context.Context, blockTimestamp uint64) (attestation.VotingRound, error) {
	params := r.params(ctx)

	if blockTimestamp < params.start {
		return attestation.VotingRound{}, attestation.NewError(attestation.ErrorKindRoundDegraded,
			"block timestamp precedes voting epoch start").
			WithContext("block_timestamp", blockTimestamp).
			WithContext("epoch_start", params.start)
	}

	round := attestation.VotingRound{
		ID:            (blockTimestamp - params.start) / params.duration,
		EpochStart:    params.start,
		EpochDuration: params.duration,
		Degraded:      params.degraded,
	}

	r.log.Debug().
		Uint64("round", round.ID).
		Uint64("block_timestamp", blockTimestamp).
		Bool("degraded", round.Degraded).
		Msg("voting round resolved")

	return round, nil
}

// params returns cached epoch parameters, reading them on first use.
// Configured overrides win over the chain; fallback constants are the
// last resort and taint the result as degraded.
func (r *Resolver) params(ctx context.Context) epochParams {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached
	}

	if r.cfg.EpochStart > 0 && r.cfg.EpochDuration > 0 {
		r.cached = &epochParams{start: r.cfg.EpochStart, duration: r.cfg.EpochDuration}
		return *r.cached
	}

	if r.source != nil {
		onchain, err := r.source.ReadEpochParams(ctx, r.caller)
		if err == nil && onchain.HasParams && onchain.EpochDuration > 0 {
			r.cached = &epochParams{start: onchain.EpochStart, duration: onchain.EpochDuration}
			r.log.Info().
				Uint64("epoch_start", onchain.EpochStart).
				Uint64("epoch_duration", onchain.EpochDuration).
				Msg("voting epoch parameters read from chain")
			return *r.cached
		}
		if err == nil && onchain.HasCurrent {
			// Only the current round id answered. Anchor the epoch so
			// that the wall clock sits at the opening boundary of that
			// round; block timestamps near now then resolve to it.
			duration := r.cfg.EpochDuration
			if duration == 0 {
				duration = FallbackEpochDuration
			}
			nowTs := uint64(r.now().Unix())
			if span := onchain.CurrentRound * duration; span < nowTs {
				r.cached = &epochParams{start: nowTs - span, duration: duration}
				r.log.Info().
					Uint64("current_round", onchain.CurrentRound).
					Uint64("epoch_start", r.cached.start).
					Uint64("epoch_duration", duration).
					Msg("voting epoch anchored to current round id")
				return *r.cached
			}
		}
		if err != nil {
			r.log.Warn().Err(err).Msg("systems manager unreachable, using fallback epoch constants")
		}
	}

	r.cached = &epochParams{
		start:    FallbackEpochStart,
		duration: FallbackEpochDuration,
		degraded: true,
	}
	return *r.cached
}

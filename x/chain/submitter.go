package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/chain/contracts"
)

// Gas limit used when estimation fails; generous for a hub call.
const fallbackGasLimit = 2_000_000

// Submitter builds, signs, broadcasts, and on stall replaces the
// paid submission transaction for an encoded attestation request.
//
// States: Built -> Signed -> Broadcast -> {Confirmed, Unconfirmed};
// Unconfirmed -> Replaced -> Broadcast, bounded by MaxReplacements.
type Submitter struct {
	backend   Backend
	hub       *contracts.HubBinding
	feeConfig *contracts.FeeConfigBinding
	fees      *FeeEstimator
	nonces    *NonceAllocator

	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	cfg Config
	log zerolog.Logger
}

// NewSubmitter wires a submitter for the given signing key. The nonce
// allocator must be shared across submitters using the same key.
func NewSubmitter(
	backend Backend,
	hub *contracts.HubBinding,
	feeConfig *contracts.FeeConfigBinding,
	fees *FeeEstimator,
	nonces *NonceAllocator,
	key *ecdsa.PrivateKey,
	chainID *big.Int,
	cfg Config,
	log zerolog.Logger,
) (*Submitter, error) {
	if backend == nil || hub == nil || feeConfig == nil || fees == nil || nonces == nil {
		return nil, errors.New("submitter: all collaborators are required")
	}
	if key == nil {
		return nil, errors.New("submitter: signing key is required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("submitter: chain id is required")
	}

	return &Submitter{
		backend:   backend,
		hub:       hub,
		feeConfig: feeConfig,
		fees:      fees,
		nonces:    nonces,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:   chainID,
		cfg:       cfg,
		log:       log.With().Str("component", "submitter").Logger(),
	}, nil
}

// From returns the signing address.
func (s *Submitter) From() common.Address {
	return s.from
}

// Submit pays for and broadcasts the encoded request, polling for a
// receipt up to the configured timeout and replacing the transaction
// when it stalls. Exactly one broadcast ends up mined on a healthy
// chain; superseded replacements are orphaned at the ledger level.
func (s *Submitter) Submit(ctx context.Context, encoded []byte) (*attestation.SubmissionResult, error) {
	if len(encoded) == 0 {
		return nil, errors.New("submitter: encoded request is empty")
	}

	nonce, err := s.nonces.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate nonce: %w", err)
	}

	quote, err := s.fees.Quote(ctx)
	if err != nil {
		s.nonces.Return(nonce)
		return nil, fmt.Errorf("quote fees: %w", err)
	}

	txHash, feePaid, err := s.broadcast(ctx, encoded, nonce, quote)
	if err != nil {
		s.nonces.Return(nonce)
		return nil, err
	}

	result := &attestation.SubmissionResult{
		TxID:          txHash.Hex(),
		Nonce:         nonce,
		FeePaid:       feePaid,
		ReceiptStatus: attestation.ReceiptPending,
	}

	broadcasts := map[common.Hash]*big.Int{txHash: feePaid}

	for {
		receipt, err := s.waitReceipt(ctx, broadcasts)
		if err != nil {
			return result, err
		}
		if receipt != nil {
			return s.finalize(ctx, result, receipt, broadcasts)
		}

		if result.Replacements >= s.cfg.MaxReplacements {
			s.log.Error().
				Str("tx", result.TxID).
				Int("replacements", result.Replacements).
				Msg("replacement budget exhausted without receipt")
			return result, attestation.NewError(attestation.ErrorKindTimeout,
				"submission unconfirmed after replacement budget").
				WithContext("tx_id", result.TxID).
				WithContext("nonce", nonce).
				WithContext("replacements", result.Replacements)
		}

		// The transaction may have been mined between polls; replacing a
		// mined transaction just burns a broadcast.
		pending, err := TransactionByHash(ctx, s.backend, txHash)
		if err == nil && pending != nil && pending.BlockNumber != nil {
			continue
		}

		quote = s.bump(ctx, quote)
		result.Replacements++

		s.log.Warn().
			Str("stuck_tx", txHash.Hex()).
			Uint64("nonce", nonce).
			Int("replacement", result.Replacements).
			Str("priority_fee", quote.PriorityFee.String()).
			Str("max_fee", quote.MaxFee.String()).
			Msg("replacing stuck submission")

		txHash, feePaid, err = s.broadcast(ctx, encoded, nonce, quote)
		if err != nil {
			return result, err
		}
		broadcasts[txHash] = feePaid
		result.TxID = txHash.Hex()
		result.FeePaid = feePaid
	}
}

// broadcast signs and sends one transaction paying the live request fee.
// The fee is read from the chain immediately before every broadcast and
// never reused across attempts.
func (s *Submitter) broadcast(ctx context.Context, encoded []byte, nonce uint64, quote FeeQuote) (common.Hash, *big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()

	fee, err := s.feeConfig.RequestFee(callCtx, s.backend, encoded)
	if err != nil {
		return common.Hash{}, nil, attestation.NewError(attestation.ErrorKindNetwork,
			"request fee unavailable").WithCause(err)
	}
	if fee == nil || fee.Sign() <= 0 {
		return common.Hash{}, nil, attestation.NewError(attestation.ErrorKindInsufficientFee,
			"fee configuration reported a zero request fee")
	}

	calldata, err := s.hub.PackRequestAttestation(encoded)
	if err != nil {
		return common.Hash{}, nil, err
	}

	if balance, err := s.backend.BalanceAt(callCtx, s.from, nil); err == nil {
		s.log.Debug().
			Str("balance", balance.String()).
			Str("request_fee", fee.String()).
			Msg("balance before broadcast")
	}

	hubAddr := s.hub.Address()
	gas, err := s.backend.EstimateGas(callCtx, ethereum.CallMsg{
		From:  s.from,
		To:    &hubAddr,
		Value: fee,
		Data:  calldata,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("gas estimate failed, using fallback limit")
		gas = fallbackGasLimit
	} else {
		gas += gas * s.gasBufferPct() / 100
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: quote.PriorityFee,
		GasFeeCap: quote.MaxFee,
		Gas:       gas,
		To:        &hubAddr,
		Value:     fee,
		Data:      calldata,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("sign submission: %w", err)
	}

	if err := s.backend.SendTransaction(callCtx, signed); err != nil {
		return common.Hash{}, nil, attestation.NewError(attestation.ErrorKindNetwork,
			"broadcast failed").WithCause(err).WithContext("nonce", nonce)
	}

	s.log.Info().
		Str("tx", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Uint64("gas", gas).
		Str("value", fee.String()).
		Str("priority_fee", quote.PriorityFee.String()).
		Str("max_fee", quote.MaxFee.String()).
		Msg("submission broadcast")

	return signed.Hash(), fee, nil
}

// waitReceipt polls every broadcast hash until one is mined or the
// per-attempt receipt timeout elapses. A nil receipt with nil error
// means the attempt window expired with the transaction still pending.
func (s *Submitter) waitReceipt(ctx context.Context, broadcasts map[common.Hash]*big.Int) (*RawReceipt, error) {
	deadline := time.NewTimer(s.receiptTimeout())
	defer deadline.Stop()
	ticker := time.NewTicker(s.receiptPoll())
	defer ticker.Stop()

	for {
		for hash := range broadcasts {
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
			receipt, err := ReceiptByHash(callCtx, s.backend, hash)
			cancel()
			if err != nil {
				s.log.Debug().Err(err).Str("tx", hash.Hex()).Msg("receipt poll error")
				continue
			}
			if receipt != nil && receipt.BlockNumber != nil {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			kind := attestation.ErrorKindCancelled
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				kind = attestation.ErrorKindTimeout
			}
			return nil, attestation.NewError(kind, "receipt wait aborted").WithCause(ctx.Err())
		case <-deadline.C:
			return nil, nil
		case <-ticker.C:
		}
	}
}

// finalize turns a mined receipt into the terminal submission result.
func (s *Submitter) finalize(
	ctx context.Context,
	result *attestation.SubmissionResult,
	receipt *RawReceipt,
	broadcasts map[common.Hash]*big.Int,
) (*attestation.SubmissionResult, error) {
	result.TxID = receipt.TxHash.Hex()
	if fee, ok := broadcasts[receipt.TxHash]; ok {
		result.FeePaid = fee
	}
	result.BlockNumber = receipt.BlockNumber.ToInt().Uint64()

	if receipt.Status == 0 {
		result.ReceiptStatus = attestation.ReceiptFailed
		s.log.Error().Str("tx", result.TxID).Msg("submission reverted")
		// Reverted submissions are not resubmitted verbatim: the cause is
		// typically invalid input or an insufficient fee, not congestion.
		return result, attestation.NewError(attestation.ErrorKindTransactionReverted,
			"submission transaction reverted").
			WithContext("tx_id", result.TxID).
			WithContext("block_number", result.BlockNumber)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()

	ts, err := BlockTimestamp(callCtx, s.backend, result.BlockNumber)
	if err != nil {
		return result, attestation.NewError(attestation.ErrorKindNetwork,
			"mined block timestamp unavailable").
			WithCause(err).
			WithContext("tx_id", result.TxID)
	}
	result.BlockTimestamp = ts
	result.ReceiptStatus = attestation.ReceiptSuccess

	if evt, err := s.hub.DecodeRequestedEvent(rawLogsToTyped(receipt.Logs)); err == nil && evt != nil {
		result.RequestID = attestation.EncodeHex(crypto.Keccak256(evt.Data))
		if evt.Fee != nil {
			result.FeePaid = evt.Fee
		}
	}

	s.log.Info().
		Str("tx", result.TxID).
		Uint64("block", result.BlockNumber).
		Uint64("block_timestamp", result.BlockTimestamp).
		Int("replacements", result.Replacements).
		Msg("submission confirmed")

	return result, nil
}

// bump escalates fees for a replacement: the priority fee at least
// doubles (floor-enforced) and the fee cap keeps the same headroom
// over the refreshed market.
func (s *Submitter) bump(ctx context.Context, prev FeeQuote) FeeQuote {
	fresh, err := s.fees.Quote(ctx)
	if err != nil {
		fresh = prev
	}

	priority := new(big.Int).Mul(prev.PriorityFee, big.NewInt(2))
	if fresh.PriorityFee.Cmp(priority) > 0 {
		priority = new(big.Int).Set(fresh.PriorityFee)
	}
	if floor := s.fees.Floor(); priority.Cmp(floor) < 0 {
		priority = floor
	}

	maxFee := new(big.Int).Mul(prev.MaxFee, big.NewInt(2))
	withHeadroom := new(big.Int).Add(fresh.MaxFee, new(big.Int).Mul(priority, big.NewInt(2)))
	if withHeadroom.Cmp(maxFee) > 0 {
		maxFee = withHeadroom
	}

	return FeeQuote{MaxFee: maxFee, PriorityFee: priority}
}

func (s *Submitter) callTimeout() time.Duration {
	if s.cfg.CallTimeout > 0 {
		return s.cfg.CallTimeout
	}
	return DefaultConfig().CallTimeout
}

func (s *Submitter) receiptTimeout() time.Duration {
	if s.cfg.ReceiptTimeout > 0 {
		return s.cfg.ReceiptTimeout
	}
	return DefaultConfig().ReceiptTimeout
}

func (s *Submitter) receiptPoll() time.Duration {
	if s.cfg.ReceiptPoll > 0 {
		return s.cfg.ReceiptPoll
	}
	return DefaultConfig().ReceiptPoll
}

func (s *Submitter) gasBufferPct() uint64 {
	if s.cfg.GasLimitBufferPct > 0 {
		return s.cfg.GasLimitBufferPct
	}
	return DefaultConfig().GasLimitBufferPct
}

func rawLogsToTyped(raw []RawLog) []*types.Log {
	logs := make([]*types.Log, 0, len(raw))
	for _, entry := range raw {
		logs = append(logs, &types.Log{
			Address: entry.Address,
			Topics:  entry.Topics,
			Data:    entry.Data,
		})
	}
	return logs
}

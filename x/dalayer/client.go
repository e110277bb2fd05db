package dalayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/x/attestation"
)

const snippetLimit = 200

// Attempt records one endpoint probe during a window scan. The full
// attempt log is attached to the terminal error so operators can see
// exactly which rounds and API shapes were tried.
type Attempt struct {
	Round   uint64 `json:"round"`
	Version string `json:"version"`
	Status  int    `json:"status"`
	Snippet string `json:"snippet,omitempty"`
}

// Client retrieves finalized attestation proofs from a DA layer node.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		log:        log.With().Str("component", "dalayer").Logger(),
	}
}

type proofQuery struct {
	VotingRoundID uint64 `json:"votingRoundId"`
	RequestBytes  string `json:"requestBytes"`
}

type proofEnvelope struct {
	Response json.RawMessage `json:"response"`
	Proof    json.RawMessage `json:"proof"`
	// Legacy v0 deployments nest the payload under data.
	Data json.RawMessage `json:"data"`
}

// FetchProof scans rounds [round, round+window] for a finalized proof
// of the given encoded request. Within each round the v1 endpoint is
// tried before v0; a sweep never probes round r+1 until both shapes at
// round r have answered. Sweeps repeat with exponential backoff until
// the proof appears or MaxWait elapses.
func (c *Client) FetchProof(ctx context.Context, round uint64, encoded []byte) (*attestation.ProofRecord, error) {
	if c.cfg.BaseURL == "" {
		return nil, attestation.NewError(attestation.ErrorKindNetwork, "da layer url is not configured")
	}
	requestBytes := attestation.EncodeHex(encoded)

	var (
		record   *attestation.ProofRecord
		attempts []Attempt
	)

	sweep := func() error {
		attempts = attempts[:0]
		for offset := uint64(0); offset <= c.cfg.Window; offset++ {
			target := round + offset
			for _, ep := range proofEndpoints {
				rec, attempt, err := c.probe(ctx, ep, target, requestBytes)
				attempts = append(attempts, attempt)
				if err != nil {
					return backoff.Permanent(err)
				}
				if rec != nil {
					record = rec
					return nil
				}
			}
		}
		c.log.Debug().
			Uint64("round", round).
			Uint64("window", c.cfg.Window).
			Msg("proof not finalized yet, will re-sweep")
		return attestation.NewError(attestation.ErrorKindProofNotYetAvailable, "proof not finalized")
	}

	policy := c.sweepPolicy(ctx)
	if err := backoff.Retry(sweep, policy); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, attestation.NewError(attestation.ErrorKindProofNotYetAvailable,
			"no finalized proof in scan window").
			WithContext("round", round).
			WithContext("window", c.cfg.Window).
			WithContext("attempts", append([]Attempt(nil), attempts...))
	}

	c.log.Info().
		Uint64("round", record.RoundID).
		Uint64("submission_round", round).
		Msg("finalized proof retrieved")
	return record, nil
}

// probe asks one endpoint about one round. A nil record with nil error
// means the proof is not available there; a non-nil error aborts the
// whole scan.
func (c *Client) probe(ctx context.Context, ep endpoint, round uint64, requestBytes string) (*attestation.ProofRecord, Attempt, error) {
	attempt := Attempt{Round: round, Version: ep.version}

	body, err := json.Marshal(proofQuery{VotingRoundID: round, RequestBytes: requestBytes})
	if err != nil {
		return nil, attempt, fmt.Errorf("encode proof query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+ep.path, bytes.NewReader(body))
	if err != nil {
		return nil, attempt, fmt.Errorf("build proof request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, attempt, attestation.NewError(attestation.ErrorKindCancelled,
				"proof fetch aborted").WithCause(ctx.Err())
		}
		return nil, attempt, attestation.NewError(attestation.ErrorKindNetwork,
			"da layer unreachable").WithCause(err).WithContext("endpoint", ep.path)
	}
	defer resp.Body.Close()

	attempt.Status = resp.StatusCode
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, attempt, attestation.NewError(attestation.ErrorKindNetwork,
			"da layer response truncated").WithCause(err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// Not finalized at this round, or the shape is not deployed.
		return nil, attempt, nil
	}
	if resp.StatusCode != http.StatusOK {
		attempt.Snippet = snippet(payload)
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("endpoint", ep.path).
			Uint64("round", round).
			Msg("da layer probe rejected")
		return nil, attempt, nil
	}

	var envelope proofEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		attempt.Snippet = snippet(payload)
		return nil, attempt, nil
	}

	response := envelope.Response
	if response == nil {
		response = envelope.Data
	}
	if response == nil && envelope.Proof == nil {
		// A 200 with an empty envelope is another way of saying not yet.
		return nil, attempt, nil
	}
	if response == nil {
		response = json.RawMessage(payload)
	}

	return &attestation.ProofRecord{
		Response: response,
		Proof:    envelope.Proof,
		RoundID:  round,
	}, attempt, nil
}

func (c *Client) sweepPolicy(ctx context.Context) backoff.BackOff {
	if c.cfg.MaxWait <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.PollInterval
	policy.MaxInterval = c.cfg.MaxPollInterval
	policy.MaxElapsedTime = c.cfg.MaxWait
	return backoff.WithContext(policy, ctx)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetLimit {
		s = s[:snippetLimit]
	}
	return s
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/catalog"
)

// Default extraction for satellite scene attestations: the scene id,
// capture time and cloud cover, pulled from the STAC item body.
const (
	defaultSceneJQ  = `{id: .id, datetime: .properties.datetime, cloud_cover: .properties."eo:cloud_cover"}`
	defaultSceneABI = `tuple(string id,string datetime,uint256 cloud_cover)`
)

// RequestPreparer turns a claim into an abi-encoded attestation request.
type RequestPreparer interface {
	PrepareEVMTransaction(ctx context.Context, sourceID, txHash string) (*attestation.Request, error)
	PrepareJSONAPI(ctx context.Context, targetURL, jq, abiSignature string) (*attestation.Request, error)
}

// Submitter pays for and broadcasts an encoded request.
type Submitter interface {
	Submit(ctx context.Context, encoded []byte) (*attestation.SubmissionResult, error)
}

// RoundResolver maps a block timestamp to its voting round.
type RoundResolver interface {
	RoundOf(ctx context.Context, blockTimestamp uint64) (attestation.VotingRound, error)
}

// ProofFetcher retrieves the finalized proof for a submitted request.
type ProofFetcher interface {
	FetchProof(ctx context.Context, round uint64, encoded []byte) (*attestation.ProofRecord, error)
}

// ScenePlanner finds catalog scenes for satellite claims.
type ScenePlanner interface {
	Search(ctx context.Context, params catalog.SearchParams) (*catalog.Result, error)
	ItemURL(dataType, sceneID string) string
}

// Outcome is a lifecycle's terminal state. On failure the fields filled
// so far are kept, so callers can see how far the pipeline got.
type Outcome struct {
	ID         string                        `json:"id"`
	Claim      Claim                         `json:"claim"`
	Scene      *catalog.Scene                `json:"scene,omitempty"`
	Request    *attestation.Request          `json:"request,omitempty"`
	Submission *attestation.SubmissionResult `json:"submission,omitempty"`
	Round      *attestation.VotingRound      `json:"round,omitempty"`
	Proof      *attestation.ProofRecord      `json:"proof,omitempty"`
	// Degraded is set when the voting round came from static fallback
	// constants rather than the chain.
	Degraded bool `json:"degraded,omitempty"`
}

// Orchestrator drives one claim through prepare, submit, round
// resolution and proof retrieval. Lifecycles are sequential internally;
// concurrent lifecycles only share the submitter's nonce allocator.
type Orchestrator struct {
	preparer RequestPreparer
	sub      Submitter
	rounds   RoundResolver
	proofs   ProofFetcher
	planner  ScenePlanner
	metrics  *Metrics
	log      zerolog.Logger
}

func NewOrchestrator(
	preparer RequestPreparer,
	sub Submitter,
	rounds RoundResolver,
	proofs ProofFetcher,
	planner ScenePlanner,
	metrics *Metrics,
	log zerolog.Logger,
) (*Orchestrator, error) {
	if preparer == nil || sub == nil || rounds == nil || proofs == nil {
		return nil, errors.New("lifecycle: preparer, submitter, rounds and proofs are required")
	}
	return &Orchestrator{
		preparer: preparer,
		sub:      sub,
		rounds:   rounds,
		proofs:   proofs,
		planner:  planner,
		metrics:  metrics,
		log:      log.With().Str("component", "lifecycle").Logger(),
	}, nil
}

// Run executes the full pipeline for one claim.
func (o *Orchestrator) Run(ctx context.Context, claim Claim) (*Outcome, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	outcome := &Outcome{ID: uuid.NewString(), Claim: claim}
	log := o.log.With().Str("lifecycle_id", outcome.ID).Str("kind", string(claim.Kind)).Logger()
	log.Info().Msg("lifecycle started")

	err := o.run(ctx, claim, outcome, log)
	o.metrics.observeOutcome(claim.Kind, err)
	if outcome.Submission != nil {
		o.metrics.observeReplacements(outcome.Submission.Replacements)
	}
	if outcome.Degraded {
		o.metrics.observeDegradedRound()
	}
	if err != nil {
		log.Error().Err(err).Msg("lifecycle failed")
		return outcome, err
	}

	log.Info().
		Uint64("round", outcome.Round.ID).
		Str("tx", outcome.Submission.TxID).
		Msg("lifecycle complete")
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, claim Claim, outcome *Outcome, log zerolog.Logger) error {
	if claim.Kind == ClaimKindSatellite {
		scene, url, jq, abiSig, err := o.plan(ctx, claim)
		if err != nil {
			return err
		}
		outcome.Scene = scene
		claim = Claim{Kind: ClaimKindWeb2, URL: url, PostProcessJQ: jq, ABISignature: abiSig}
		log.Info().Str("scene", scene.ID).Str("url", url).Msg("satellite claim planned")
	}

	request, err := o.prepare(ctx, claim)
	if err != nil {
		return err
	}
	outcome.Request = request

	submission, err := timedStage(o, "submit", func() (*attestation.SubmissionResult, error) {
		return o.sub.Submit(ctx, request.Encoded)
	})
	outcome.Submission = submission
	if err != nil {
		return err
	}

	round, err := timedStage(o, "resolve_round", func() (attestation.VotingRound, error) {
		return o.rounds.RoundOf(ctx, submission.BlockTimestamp)
	})
	if err != nil {
		return err
	}
	outcome.Round = &round
	outcome.Degraded = round.Degraded

	proof, err := timedStage(o, "fetch_proof", func() (*attestation.ProofRecord, error) {
		return o.proofs.FetchProof(ctx, round.ID, request.Encoded)
	})
	if err != nil {
		return err
	}
	outcome.Proof = proof
	return nil
}

// plan resolves a satellite claim into a web2 claim over its top scene.
func (o *Orchestrator) plan(ctx context.Context, claim Claim) (*catalog.Scene, string, string, string, error) {
	if o.planner == nil {
		return nil, "", "", "", errors.New("lifecycle: no catalog planner configured for satellite claims")
	}

	result, err := timedStage(o, "plan", func() (*catalog.Result, error) {
		return o.planner.Search(ctx, *claim.Search)
	})
	if err != nil {
		return nil, "", "", "", fmt.Errorf("catalog search: %w", err)
	}
	if len(result.Scenes) == 0 {
		return nil, "", "", "", attestation.NewError(attestation.ErrorKindVerifierRejected,
			"no catalog scene matched any search strategy").
			WithContext("attempts", len(result.Attempts))
	}

	scene := result.Scenes[0]
	url := o.planner.ItemURL(claim.Search.DataType, scene.ID)

	jq := claim.PostProcessJQ
	if jq == "" {
		jq = defaultSceneJQ
	}
	abiSig := claim.ABISignature
	if abiSig == "" {
		abiSig = defaultSceneABI
	}
	return &scene, url, jq, abiSig, nil
}

func (o *Orchestrator) prepare(ctx context.Context, claim Claim) (*attestation.Request, error) {
	return timedStage(o, "prepare", func() (*attestation.Request, error) {
		switch claim.Kind {
		case ClaimKindEVM:
			return o.preparer.PrepareEVMTransaction(ctx, claim.SourceID, claim.TxHash)
		case ClaimKindWeb2:
			return o.preparer.PrepareJSONAPI(ctx, claim.URL, claim.PostProcessJQ, claim.ABISignature)
		}
		return nil, fmt.Errorf("claim kind %q cannot be prepared directly", claim.Kind)
	})
}

// FetchProof re-polls the availability layer for an already submitted
// request, without re-running the pipeline.
func (o *Orchestrator) FetchProof(ctx context.Context, round uint64, encoded []byte) (*attestation.ProofRecord, error) {
	return timedStage(o, "fetch_proof", func() (*attestation.ProofRecord, error) {
		return o.proofs.FetchProof(ctx, round, encoded)
	})
}

// timedStage wraps one stage with a duration observation.
func timedStage[T any](o *Orchestrator, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	o.metrics.observeStage(stage, time.Since(start))
	return v, err
}

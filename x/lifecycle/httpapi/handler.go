package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/server/api"
	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/catalog"
	"github.com/attest-network/attestor/x/lifecycle"
)

// Runner is the lifecycle surface the API exposes.
type Runner interface {
	Run(ctx context.Context, claim lifecycle.Claim) (*lifecycle.Outcome, error)
	FetchProof(ctx context.Context, round uint64, encoded []byte) (*attestation.ProofRecord, error)
}

// Handler wires lifecycle operations onto the API router.
type Handler struct {
	runner  Runner
	planner lifecycle.ScenePlanner
	log     zerolog.Logger
}

func NewHandler(runner Runner, planner lifecycle.ScenePlanner, log zerolog.Logger) *Handler {
	return &Handler{
		runner:  runner,
		planner: planner,
		log:     log.With().Str("component", "lifecycle-api").Logger(),
	}
}

// Register mounts all routes under /v1.
func (h *Handler) Register(router *mux.Router) {
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/attestations", h.handleAttest).Methods(http.MethodPost)
	v1.HandleFunc("/proofs/fetch", h.handleFetchProof).Methods(http.MethodPost)
	v1.HandleFunc("/catalog/search", h.handleCatalogSearch).Methods(http.MethodPost)
	v1.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

func (h *Handler) handleAttest(w http.ResponseWriter, r *http.Request) {
	var claim lifecycle.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		api.WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body is not a valid claim", err.Error())
		return
	}
	if err := claim.Validate(); err != nil {
		api.WriteError(w, r, http.StatusBadRequest, "invalid_claim", err.Error(), nil)
		return
	}

	outcome, err := h.runner.Run(r.Context(), claim)
	if err != nil {
		status, code := statusFor(err)
		api.WriteError(w, r, status, code, err.Error(), outcome)
		return
	}
	api.WriteJSON(w, http.StatusOK, outcome)
}

type fetchProofRequest struct {
	Round        uint64 `json:"round"`
	RequestBytes string `json:"requestBytes"`
}

func (h *Handler) handleFetchProof(w http.ResponseWriter, r *http.Request) {
	var req fetchProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid", err.Error())
		return
	}

	encoded, err := attestation.DecodeHex(req.RequestBytes)
	if err != nil || len(encoded) == 0 {
		api.WriteError(w, r, http.StatusBadRequest, "invalid_request_bytes", "requestBytes must be non-empty hex", nil)
		return
	}

	proof, err := h.runner.FetchProof(r.Context(), req.Round, encoded)
	if err != nil {
		status, code := statusFor(err)
		api.WriteError(w, r, status, code, err.Error(), nil)
		return
	}
	api.WriteJSON(w, http.StatusOK, proof)
}

func (h *Handler) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if h.planner == nil {
		api.WriteError(w, r, http.StatusServiceUnavailable, "catalog_disabled", "no catalog planner is configured", nil)
		return
	}

	var params catalog.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		api.WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid", err.Error())
		return
	}

	result, err := h.planner.Search(r.Context(), params)
	if err != nil {
		api.WriteError(w, r, http.StatusBadRequest, "search_failed", err.Error(), nil)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps domain error kinds to HTTP statuses. Unknown errors
// surface as 500.
func statusFor(err error) (int, string) {
	kind, ok := attestation.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal_error"
	}
	switch kind {
	case attestation.ErrorKindVerifierRejected,
		attestation.ErrorKindMalformedVerifierResponse,
		attestation.ErrorKindInsufficientFee,
		attestation.ErrorKindTransactionReverted,
		attestation.ErrorKindRoundDegraded:
		return http.StatusUnprocessableEntity, kind.String()
	case attestation.ErrorKindNetwork:
		return http.StatusBadGateway, kind.String()
	case attestation.ErrorKindTimeout, attestation.ErrorKindProofNotYetAvailable:
		return http.StatusGatewayTimeout, kind.String()
	case attestation.ErrorKindCancelled:
		return http.StatusServiceUnavailable, kind.String()
	}
	return http.StatusInternalServerError, "internal_error"
}

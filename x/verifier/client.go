package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/x/attestation"
)

const evmPreparePath = "/verifier/eth/EVMTransaction/prepareRequest"

// web2PreparePaths is the ordered candidate list for the JsonApi
// prepareRequest route; verifier deployments disagree on the casing and
// nesting of the path, so each is tried until one answers.
var web2PreparePaths = []string{
	"/verifier/web2/jsonApi/prepareRequest",
	"/verifier/web2/jsonapi/prepareRequest",
	"/verifier/jsonapi/prepareRequest",
}

// EVMTransactionBody is the claim-specific request body for EVMTransaction.
type EVMTransactionBody struct {
	TransactionHash       string `json:"transactionHash"`
	RequiredConfirmations string `json:"requiredConfirmations"`
	ProvideInput          bool   `json:"provideInput"`
	ListEvents            bool   `json:"listEvents"`
	LogIndices            []int  `json:"logIndices"`
}

// JSONAPIBody is the claim-specific request body for JsonApi.
type JSONAPIBody struct {
	URL           string `json:"url"`
	HTTPMethod    string `json:"httpMethod"`
	Headers       string `json:"headers"`
	QueryParams   string `json:"queryParams"`
	Body          string `json:"body"`
	PostProcessJQ string `json:"postProcessJq"`
	ABISignature  string `json:"abiSignature"`
}

type prepareRequest struct {
	AttestationType string `json:"attestationType"`
	SourceID        string `json:"sourceId"`
	RequestBody     any    `json:"requestBody"`
}

type prepareResponse struct {
	ABIEncodedRequest string `json:"abiEncodedRequest"`
}

// Client converts claims into their canonical encoded request form via
// the external verifier's prepareRequest endpoint. Stateless per call.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// New constructs a verifier client.
func New(cfg Config, httpClient *http.Client, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.EVMBaseURL) == "" && strings.TrimSpace(cfg.Web2BaseURL) == "" {
		return nil, errors.New("at least one verifier base URL is required")
	}
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.With().Str("component", "verifier-client").Logger(),
	}, nil
}

// PrepareEVMTransaction prepares an EVMTransaction claim for the given
// source chain and transaction hash.
func (c *Client) PrepareEVMTransaction(ctx context.Context, sourceID, txHash string) (*attestation.Request, error) {
	body := EVMTransactionBody{
		TransactionHash:       txHash,
		RequiredConfirmations: "1",
		ProvideInput:          true,
		ListEvents:            true,
		LogIndices:            []int{},
	}
	return c.prepare(ctx, c.cfg.EVMBaseURL, []string{evmPreparePath}, attestation.ClaimEVMTransaction, sourceID, body)
}

// PrepareJSONAPI prepares a JsonApi claim attesting the JSON response of
// targetURL, post-processed by jq and decoded against abiSignature.
func (c *Client) PrepareJSONAPI(ctx context.Context, targetURL, jq, abiSignature string) (*attestation.Request, error) {
	body := JSONAPIBody{
		URL:           targetURL,
		HTTPMethod:    http.MethodGet,
		Headers:       "{}",
		QueryParams:   "{}",
		Body:          "{}",
		PostProcessJQ: jq,
		ABISignature:  abiSignature,
	}
	return c.prepare(ctx, c.cfg.Web2BaseURL, web2PreparePaths, attestation.ClaimJSONAPI, "WEB2", body)
}

// prepare posts the padded claim to each candidate path until one
// returns a usable encoded request.
func (c *Client) prepare(
	ctx context.Context,
	baseURL string,
	paths []string,
	claimType attestation.ClaimType,
	sourceID string,
	body any,
) (*attestation.Request, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, attestation.NewError(attestation.ErrorKindVerifierRejected,
			fmt.Sprintf("no verifier configured for claim type %s", claimType))
	}

	paddedType, err := attestation.Pad32(string(claimType))
	if err != nil {
		return nil, fmt.Errorf("pad claim type: %w", err)
	}
	paddedSource, err := attestation.Pad32(sourceID)
	if err != nil {
		return nil, fmt.Errorf("pad source id: %w", err)
	}

	payload, err := json.Marshal(prepareRequest{
		AttestationType: paddedType,
		SourceID:        paddedSource,
		RequestBody:     body,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal prepare request: %w", err)
	}

	var lastErr error
	for _, p := range paths {
		endpoint, err := url.JoinPath(baseURL, p)
		if err != nil {
			return nil, fmt.Errorf("join verifier URL: %w", err)
		}

		encoded, err := c.postPrepare(ctx, endpoint, payload)
		if err == nil {
			rawBody, _ := json.Marshal(body)
			c.log.Debug().
				Str("claim_type", string(claimType)).
				Str("endpoint", endpoint).
				Int("encoded_len", len(encoded)).
				Msg("prepared attestation request")
			return &attestation.Request{
				ClaimType: claimType,
				SourceID:  sourceID,
				Body:      rawBody,
				Encoded:   encoded,
			}, nil
		}

		// Malformed 200 responses are fatal for these inputs; no point
		// retrying the remaining candidate paths.
		if kind, ok := attestation.KindOf(err); ok && kind == attestation.ErrorKindMalformedVerifierResponse {
			return nil, err
		}

		lastErr = err
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("prepareRequest attempt failed")
	}

	return nil, lastErr
}

func (c *Client) postPrepare(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("prepare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, attestation.NewError(attestation.ErrorKindNetwork, "verifier unreachable").
			WithCause(err).
			WithContext("endpoint", endpoint)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, attestation.NewError(attestation.ErrorKindVerifierRejected,
			fmt.Sprintf("verifier returned %s", res.Status)).
			WithContext("endpoint", endpoint).
			WithContext("status", res.StatusCode).
			WithContext("body", string(snippet))
	}

	var decoded prepareResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, attestation.NewError(attestation.ErrorKindMalformedVerifierResponse,
			"verifier returned non-JSON 200 response").
			WithCause(err).
			WithContext("endpoint", endpoint)
	}
	if decoded.ABIEncodedRequest == "" {
		return nil, attestation.NewError(attestation.ErrorKindMalformedVerifierResponse,
			"verifier response missing abiEncodedRequest").
			WithContext("endpoint", endpoint)
	}

	encoded, err := attestation.DecodeHex(decoded.ABIEncodedRequest)
	if err != nil {
		return nil, attestation.NewError(attestation.ErrorKindMalformedVerifierResponse,
			"abiEncodedRequest is not valid hex").
			WithCause(err).
			WithContext("endpoint", endpoint)
	}

	return encoded, nil
}

package attestation

import (
	"encoding/json"
	"math/big"
)

// ClaimType identifies the attestation claim family understood by a verifier.
type ClaimType string

const (
	// ClaimEVMTransaction attests a transaction mined on an external EVM chain.
	ClaimEVMTransaction ClaimType = "EVMTransaction"
	// ClaimJSONAPI attests the response of a Web2 JSON endpoint.
	ClaimJSONAPI ClaimType = "JsonApi"
)

// ReceiptStatus tracks the ledger receipt state of a submission.
type ReceiptStatus string

const (
	ReceiptPending ReceiptStatus = "pending"
	ReceiptSuccess ReceiptStatus = "success"
	ReceiptFailed  ReceiptStatus = "failed"
)

// Request is a claim converted to its canonical encoded form by an
// external verifier. Immutable once Encoded is set.
type Request struct {
	ClaimType ClaimType       `json:"claimType"`
	SourceID  string          `json:"sourceId"`
	Body      json.RawMessage `json:"body"`
	Encoded   []byte          `json:"encoded"`
}

// SubmissionResult describes the canonical on-chain submission for one
// logical request. A replacement supersedes the original in place; two
// independently successful submissions never coexist.
type SubmissionResult struct {
	TxID           string        `json:"txId"`
	Nonce          uint64        `json:"nonce"`
	FeePaid        *big.Int      `json:"feePaid"`
	ReceiptStatus  ReceiptStatus `json:"receiptStatus"`
	BlockNumber    uint64        `json:"blockNumber"`
	BlockTimestamp uint64        `json:"blockTimestamp"`
	Replacements   int           `json:"replacements"`
	// RequestID is decoded from the hub's AttestationRequest event when present.
	RequestID string `json:"requestId,omitempty"`
}

// VotingRound is the consensus epoch a proof is keyed by. Derived from
// chain parameters, never stored.
type VotingRound struct {
	ID            uint64 `json:"id"`
	EpochStart    uint64 `json:"epochStart"`
	EpochDuration uint64 `json:"epochDuration"`
	// Degraded marks rounds computed from static fallback constants
	// after the systems manager could not be reached.
	Degraded bool `json:"degraded"`
}

// ProofRecord is the finalized proof fetched from the availability layer.
type ProofRecord struct {
	Response json.RawMessage `json:"response"`
	Proof    json.RawMessage `json:"proof"`
	RoundID  uint64          `json:"roundId"`
}

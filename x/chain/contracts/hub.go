package contracts

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// AttestationHub ABI JSON embedded at compile time
//
//go:embed abi/attestation_hub.json
var attestationHubABIJSON string

// HubBinding packs calls to the attestation hub and decodes its
// AttestationRequest event.
type HubBinding struct {
	address common.Address
	abi     abi.ABI
	eventID common.Hash
}

// RequestedEvent is the decoded AttestationRequest log entry.
type RequestedEvent struct {
	Data []byte
	Fee  *big.Int
}

// NewHubBinding creates a hub binding at the resolved address.
func NewHubBinding(address common.Address) (*HubBinding, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("hub address cannot be zero")
	}

	parsedABI, err := abi.JSON(strings.NewReader(attestationHubABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse AttestationHub ABI: %w", err)
	}

	return &HubBinding{
		address: address,
		abi:     parsedABI,
		eventID: parsedABI.Events["AttestationRequest"].ID,
	}, nil
}

// Address returns the hub contract address.
func (b *HubBinding) Address() common.Address {
	return b.address
}

// PackRequestAttestation encodes requestAttestation(bytes) calldata for
// the given canonical encoded request.
func (b *HubBinding) PackRequestAttestation(encoded []byte) ([]byte, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("encoded request cannot be empty")
	}
	data, err := b.abi.Pack("requestAttestation", encoded)
	if err != nil {
		return nil, fmt.Errorf("pack requestAttestation calldata: %w", err)
	}
	return data, nil
}

// UnpackRequestAttestation recovers the encoded request bytes from raw
// requestAttestation(bytes) transaction input.
func (b *HubBinding) UnpackRequestAttestation(input []byte) ([]byte, error) {
	method := b.abi.Methods["requestAttestation"]
	if len(input) < len(method.ID) {
		return nil, fmt.Errorf("tx input shorter than method selector")
	}
	if string(input[:len(method.ID)]) != string(method.ID) {
		return nil, fmt.Errorf("tx input is not a requestAttestation call")
	}
	vals, err := method.Inputs.Unpack(input[len(method.ID):])
	if err != nil {
		return nil, fmt.Errorf("unpack requestAttestation input: %w", err)
	}
	encoded, ok := vals[0].([]byte)
	if !ok || len(encoded) == 0 {
		return nil, fmt.Errorf("requestAttestation input carries no request bytes")
	}
	return encoded, nil
}

// DecodeRequestedEvent scans receipt logs for the hub's
// AttestationRequest event. The topic signature is checked before any
// structured decode is attempted; logs from other contracts or with
// other signatures are skipped, not speculatively parsed.
func (b *HubBinding) DecodeRequestedEvent(logs []*types.Log) (*RequestedEvent, error) {
	for _, entry := range logs {
		if entry == nil || entry.Address != b.address {
			continue
		}
		if len(entry.Topics) == 0 || entry.Topics[0] != b.eventID {
			continue
		}

		vals, err := b.abi.Unpack("AttestationRequest", entry.Data)
		if err != nil {
			return nil, fmt.Errorf("decode AttestationRequest event: %w", err)
		}
		data, ok := vals[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected AttestationRequest data type")
		}
		fee, ok := vals[1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected AttestationRequest fee type")
		}
		return &RequestedEvent{Data: data, Fee: fee}, nil
	}
	return nil, nil
}

package contracts

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// FeeConfigurations ABI JSON embedded at compile time
//
//go:embed abi/fee_configurations.json
var feeConfigurationsABIJSON string

// FeeConfigBinding reads the exact fee an encoded request must pay.
type FeeConfigBinding struct {
	address common.Address
	abi     abi.ABI
}

// NewFeeConfigBinding creates a fee configuration binding at the
// resolved address.
func NewFeeConfigBinding(address common.Address) (*FeeConfigBinding, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("fee configuration address cannot be zero")
	}

	parsedABI, err := abi.JSON(strings.NewReader(feeConfigurationsABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FeeConfigurations ABI: %w", err)
	}

	return &FeeConfigBinding{address: address, abi: parsedABI}, nil
}

// Address returns the fee configuration contract address.
func (b *FeeConfigBinding) Address() common.Address {
	return b.address
}

// RequestFee returns the exact fee the hub charges for this encoded
// request. Callers must invoke this fresh before every broadcast.
func (b *FeeConfigBinding) RequestFee(ctx context.Context, caller Caller, encoded []byte) (*big.Int, error) {
	data, err := b.abi.Pack("getRequestFee", encoded)
	if err != nil {
		return nil, fmt.Errorf("pack getRequestFee: %w", err)
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &b.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getRequestFee call: %w", err)
	}

	vals, err := b.abi.Unpack("getRequestFee", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getRequestFee result: %w", err)
	}
	fee, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getRequestFee result type")
	}

	return fee, nil
}

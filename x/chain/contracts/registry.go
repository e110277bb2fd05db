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

// ContractRegistry ABI JSON embedded at compile time
//
//go:embed abi/contract_registry.json
var contractRegistryABIJSON string

// Well-known registry entry names.
const (
	NameAttestationHub    = "FdcHub"
	NameFeeConfigurations = "FdcRequestFeeConfigurations"
)

// SystemsManagerNames are the registry entries a systems manager may be
// published under, tried in order.
var SystemsManagerNames = []string{"FlareSystemsManager", "SystemsManager", "FdcSystemsManager"}

// Caller is the minimal read-only chain access bindings need.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RegistryBinding resolves live contract addresses by name so nothing
// downstream hardcodes deployment addresses.
type RegistryBinding struct {
	address common.Address
	abi     abi.ABI
}

// NewRegistryBinding parses the embedded registry ABI and validates the
// configured registry address.
func NewRegistryBinding(contractAddr string) (*RegistryBinding, error) {
	if !common.IsHexAddress(strings.TrimSpace(contractAddr)) {
		return nil, fmt.Errorf("invalid registry address %q", contractAddr)
	}

	parsedABI, err := abi.JSON(strings.NewReader(contractRegistryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ContractRegistry ABI: %w", err)
	}

	return &RegistryBinding{
		address: common.HexToAddress(contractAddr),
		abi:     parsedABI,
	}, nil
}

// Address returns the registry contract address.
func (b *RegistryBinding) Address() common.Address {
	return b.address
}

// Resolve looks up the address published under name. A zero address is
// treated as not found.
func (b *RegistryBinding) Resolve(ctx context.Context, caller Caller, name string) (common.Address, error) {
	data, err := b.abi.Pack("getContractAddressByName", name)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getContractAddressByName: %w", err)
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &b.address, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("registry lookup %q: %w", name, err)
	}

	vals, err := b.abi.Unpack("getContractAddressByName", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack registry result for %q: %w", name, err)
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected registry result type for %q", name)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("registry has no entry for %q", name)
	}

	return addr, nil
}

// ResolveFirst tries each candidate name and returns the first address
// the registry knows.
func (b *RegistryBinding) ResolveFirst(ctx context.Context, caller Caller, names []string) (common.Address, error) {
	var lastErr error
	for _, name := range names {
		addr, err := b.Resolve(ctx, caller, name)
		if err == nil {
			return addr, nil
		}
		lastErr = err
	}
	return common.Address{}, fmt.Errorf("no registry entry for any of %v: %w", names, lastErr)
}

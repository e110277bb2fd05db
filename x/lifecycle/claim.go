package lifecycle

import (
	"fmt"

	"github.com/attest-network/attestor/x/catalog"
)

// ClaimKind selects the attestation route.
type ClaimKind string

const (
	// ClaimKindEVM attests a transaction on a supported EVM chain.
	ClaimKindEVM ClaimKind = "evm"
	// ClaimKindWeb2 attests the JSON response of an arbitrary URL.
	ClaimKindWeb2 ClaimKind = "web2"
	// ClaimKindSatellite plans a catalog search first and attests the
	// top scene through the web2 route.
	ClaimKindSatellite ClaimKind = "satellite"
)

// Claim is one attestation request as accepted from the API or CLI.
type Claim struct {
	Kind ClaimKind `json:"kind"`

	// EVM route.
	SourceID string `json:"sourceId,omitempty"`
	TxHash   string `json:"txHash,omitempty"`

	// Web2 route. PostProcessJQ and ABISignature must agree on the
	// extracted shape.
	URL           string `json:"url,omitempty"`
	PostProcessJQ string `json:"postProcessJq,omitempty"`
	ABISignature  string `json:"abiSignature,omitempty"`

	// Satellite route.
	Search *catalog.SearchParams `json:"search,omitempty"`
}

// Validate checks route-specific required fields.
func (c Claim) Validate() error {
	switch c.Kind {
	case ClaimKindEVM:
		if c.SourceID == "" || c.TxHash == "" {
			return fmt.Errorf("evm claim requires sourceId and txHash")
		}
	case ClaimKindWeb2:
		if c.URL == "" || c.PostProcessJQ == "" || c.ABISignature == "" {
			return fmt.Errorf("web2 claim requires url, postProcessJq and abiSignature")
		}
	case ClaimKindSatellite:
		if c.Search == nil {
			return fmt.Errorf("satellite claim requires search parameters")
		}
	default:
		return fmt.Errorf("unknown claim kind %q", c.Kind)
	}
	return nil
}

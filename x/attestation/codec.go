package attestation

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const identifierWidth = 32

// Pad32 encodes an ASCII identifier as a 0x-prefixed 32-byte
// right-zero-padded hex string, the fixed-width form verifiers expect
// for claim types and source ids.
func Pad32(s string) (string, error) {
	if len(s) == 0 {
		return "", fmt.Errorf("identifier is empty")
	}
	if len(s) > identifierWidth {
		return "", fmt.Errorf("identifier %q exceeds %d bytes", s, identifierWidth)
	}
	buf := make([]byte, identifierWidth)
	copy(buf, s)
	return "0x" + hex.EncodeToString(buf), nil
}

// Unpad32 reverses Pad32, trimming the zero padding.
func Unpad32(s string) (string, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return "", err
	}
	if len(raw) != identifierWidth {
		return "", fmt.Errorf("expected %d bytes, got %d", identifierWidth, len(raw))
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// DecodeHex decodes a hex string with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return raw, nil
}

// EncodeHex encodes bytes as a 0x-prefixed hex string.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

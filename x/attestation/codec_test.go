package attestation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPad32RoundTrip(t *testing.T) {
	t.Parallel()

	padded, err := Pad32("EVMTransaction")
	require.NoError(t, err)
	require.Equal(t, "0x45564d5472616e73616374696f6e000000000000000000000000000000000000", padded)

	back, err := Unpad32(padded)
	require.NoError(t, err)
	require.Equal(t, "EVMTransaction", back)
}

func TestPad32SourceID(t *testing.T) {
	t.Parallel()

	padded, err := Pad32("testETH")
	require.NoError(t, err)
	require.Equal(t, "0x7465737445544800000000000000000000000000000000000000000000000000", padded)
}

func TestPad32Rejects(t *testing.T) {
	t.Parallel()

	_, err := Pad32("")
	require.Error(t, err)

	_, err = Pad32("this identifier is far too long to fit into thirty-two bytes")
	require.Error(t, err)
}

func TestErrorKindMatching(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewError(ErrorKindNetwork, "verifier unreachable").
		WithCause(cause).
		WithContext("url", "http://verifier.local")

	require.ErrorIs(t, err, cause)
	require.True(t, errors.Is(err, NewError(ErrorKindNetwork, "")))
	require.False(t, errors.Is(err, NewError(ErrorKindTimeout, "")))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrorKindNetwork, kind)
	require.True(t, kind.Retryable())
	require.False(t, ErrorKindVerifierRejected.Retryable())
}

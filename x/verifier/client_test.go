package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/attest-network/attestor/x/attestation"
)

func TestPrepareEVMTransaction(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]string{"abiEncodedRequest": "0xdeadbeef"})
	}))
	defer srv.Close()

	client, err := New(Config{EVMBaseURL: srv.URL, APIKey: "secret"}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	req, err := client.PrepareEVMTransaction(context.Background(), "testETH", "0xabc123")
	require.NoError(t, err)

	require.Equal(t, "/verifier/eth/EVMTransaction/prepareRequest", gotPath)
	require.Equal(t, "0x45564d5472616e73616374696f6e000000000000000000000000000000000000", gotPayload["attestationType"])
	require.Equal(t, "0x7465737445544800000000000000000000000000000000000000000000000000", gotPayload["sourceId"])
	require.Equal(t, attestation.ClaimEVMTransaction, req.ClaimType)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, req.Encoded)
}

func TestPrepareJSONAPITriesCandidatePathsInOrder(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) < 3 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"abiEncodedRequest": "0x0102"})
	}))
	defer srv.Close()

	client, err := New(Config{Web2BaseURL: srv.URL}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	req, err := client.PrepareJSONAPI(context.Background(), "https://api.example.com/data", ".price", "uint256")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, req.Encoded)
	require.Equal(t, []string{
		"/verifier/web2/jsonApi/prepareRequest",
		"/verifier/web2/jsonapi/prepareRequest",
		"/verifier/jsonapi/prepareRequest",
	}, paths)
}

func TestPrepareRejectedByVerifier(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad source", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := New(Config{EVMBaseURL: srv.URL}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	_, err = client.PrepareEVMTransaction(context.Background(), "testETH", "0xabc")
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindVerifierRejected, kind)
}

func TestPrepareMissingEncodedFieldIsFatal(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "INVALID"})
	}))
	defer srv.Close()

	client, err := New(Config{Web2BaseURL: srv.URL}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	_, err = client.PrepareJSONAPI(context.Background(), "https://api.example.com", ".x", "uint256")
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindMalformedVerifierResponse, kind)
	// Fatal responses stop the candidate path scan.
	require.Equal(t, 1, calls)
}

func TestPrepareNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := New(Config{EVMBaseURL: srv.URL}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.PrepareEVMTransaction(context.Background(), "testETH", "0xabc")
	kind, ok := attestation.KindOf(err)
	require.True(t, ok)
	require.Equal(t, attestation.ErrorKindNetwork, kind)
	require.True(t, kind.Retryable())
}

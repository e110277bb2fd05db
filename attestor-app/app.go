package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/attest-network/attestor/attestor-app/config"
	"github.com/attest-network/attestor/metrics"
	apisrv "github.com/attest-network/attestor/server/api"
	apimw "github.com/attest-network/attestor/server/api/middleware"
	"github.com/attest-network/attestor/x/catalog"
	"github.com/attest-network/attestor/x/chain"
	"github.com/attest-network/attestor/x/chain/contracts"
	"github.com/attest-network/attestor/x/dalayer"
	"github.com/attest-network/attestor/x/lifecycle"
	"github.com/attest-network/attestor/x/lifecycle/httpapi"
	"github.com/attest-network/attestor/x/rounds"
	"github.com/attest-network/attestor/x/verifier"
)

// App wires the attestation pipeline and its HTTP surface.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	chainClient  *chain.Client
	hub          *contracts.HubBinding
	orchestrator *lifecycle.Orchestrator
	planner      *catalog.Planner
	apiServer    *apisrv.Server

	cancel context.CancelFunc
}

// NewApp connects to the chain, resolves the protocol contracts and
// builds every pipeline component.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}
	if err := app.initialize(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return app, nil
}

func (a *App) initialize(ctx context.Context) error {
	client, err := chain.Dial(ctx, a.cfg.Chain.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("dial chain rpc: %w", err)
	}
	a.chainClient = client

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	a.log.Info().
		Str("rpc", a.cfg.Chain.RPCEndpoint).
		Str("chain_id", chainID.String()).
		Msg("connected to chain")

	registry, err := contracts.NewRegistryBinding(a.cfg.Chain.RegistryContract)
	if err != nil {
		return fmt.Errorf("registry binding: %w", err)
	}

	hubAddr, err := registry.Resolve(ctx, client, contracts.NameAttestationHub)
	if err != nil {
		return fmt.Errorf("resolve attestation hub: %w", err)
	}
	feeAddr, err := registry.Resolve(ctx, client, contracts.NameFeeConfigurations)
	if err != nil {
		return fmt.Errorf("resolve fee configurations: %w", err)
	}
	a.log.Info().
		Str("hub", hubAddr.Hex()).
		Str("fee_config", feeAddr.Hex()).
		Msg("protocol contracts resolved")

	hub, err := contracts.NewHubBinding(hubAddr)
	if err != nil {
		return err
	}
	a.hub = hub
	feeConfig, err := contracts.NewFeeConfigBinding(feeAddr)
	if err != nil {
		return err
	}

	// The systems manager is advisory: without it rounds degrade to
	// static epoch constants instead of failing.
	var epochSource *contracts.SystemsManagerBinding
	if smAddr, err := registry.ResolveFirst(ctx, client, contracts.SystemsManagerNames); err == nil {
		epochSource, err = contracts.NewSystemsManagerBinding(smAddr)
		if err != nil {
			return err
		}
		a.log.Info().Str("systems_manager", smAddr.Hex()).Msg("systems manager resolved")
	} else {
		a.log.Warn().Err(err).Msg("no systems manager contract, voting rounds will use fallback constants")
	}

	keyHex := strings.TrimPrefix(strings.TrimSpace(a.cfg.Chain.PrivateKeyHex), "0x")
	if keyHex == "" {
		return fmt.Errorf("chain.private_key_hex is required to submit attestations")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return fmt.Errorf("parse signing key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	a.log.Info().Str("address", from.Hex()).Msg("signing account loaded")

	fees := chain.NewFeeEstimator(client, a.cfg.Chain, a.log)
	nonces := chain.NewNonceAllocator(client, from)
	submitter, err := chain.NewSubmitter(client, hub, feeConfig, fees, nonces, key, chainID, a.cfg.Chain, a.log)
	if err != nil {
		return fmt.Errorf("build submitter: %w", err)
	}

	verifierClient, err := verifier.New(a.cfg.Verifier, nil, a.log)
	if err != nil {
		return fmt.Errorf("build verifier client: %w", err)
	}

	roundResolver := rounds.NewResolver(client, epochSourceOrNil(epochSource), a.cfg.Rounds, a.log)
	proofClient := dalayer.NewClient(a.cfg.DALayer, a.log)

	catalogClient := catalog.NewClient(a.cfg.Catalog, a.log)
	a.planner = catalog.NewPlanner(catalogClient, a.cfg.Catalog, a.log)

	lifecycleMetrics := lifecycle.NewMetrics(metrics.NewComponentRegistry("attestor", "lifecycle"))
	a.orchestrator, err = lifecycle.NewOrchestrator(
		verifierClient, submitter, roundResolver, proofClient, a.planner, lifecycleMetrics, a.log)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	a.initializeAPIServer()
	return nil
}

// epochSourceOrNil avoids a typed-nil interface when the systems
// manager was not resolved.
func epochSourceOrNil(b *contracts.SystemsManagerBinding) rounds.EpochSource {
	if b == nil {
		return nil
	}
	return b
}

func (a *App) initializeAPIServer() {
	s := apisrv.NewServer(a.cfg.API, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))
	s.EnableCORS()

	if a.cfg.Metrics.Enabled {
		path := a.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.Router.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
	}

	handler := httpapi.NewHandler(a.orchestrator, a.planner, a.log)
	handler.Register(s.Router)

	a.apiServer = s
}

// Orchestrator exposes the pipeline for one-shot CLI commands.
func (a *App) Orchestrator() *lifecycle.Orchestrator {
	return a.orchestrator
}

// Planner exposes the catalog planner for one-shot CLI commands.
func (a *App) Planner() *catalog.Planner {
	return a.planner
}

// RequestBytesFromTx recovers the encoded request from a submission
// transaction's calldata, for re-polling proofs when the original
// request bytes were not kept.
func (a *App) RequestBytesFromTx(ctx context.Context, txHash common.Hash) ([]byte, uint64, error) {
	tx, err := chain.TransactionByHash(ctx, a.chainClient, txHash)
	if err != nil {
		return nil, 0, err
	}
	if tx == nil {
		return nil, 0, fmt.Errorf("transaction %s is unknown to the node", txHash.Hex())
	}
	encoded, err := a.hub.UnpackRequestAttestation(tx.Input)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction %s is not an attestation submission: %w", txHash.Hex(), err)
	}

	var blockNumber uint64
	if tx.BlockNumber != nil {
		blockNumber = tx.BlockNumber.ToInt().Uint64()
	}
	return encoded, blockNumber, nil
}

// Run starts the API server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		if err := a.apiServer.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("API server error")
		}
	}()

	return a.runWithGracefulShutdown(runCtx)
}

func (a *App) runWithGracefulShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Msg("attestor started successfully")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	if a.cancel != nil {
		a.cancel()
	}

	// The API server drains on context cancellation; give it a moment
	// before dropping the RPC connection.
	time.Sleep(100 * time.Millisecond)
	a.Close()
	return nil
}

// Close releases external connections.
func (a *App) Close() {
	if a.chainClient != nil {
		a.chainClient.Close()
		a.chainClient = nil
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/attest-network/attestor/attestor-app/config"
	"github.com/attest-network/attestor/log"
	"github.com/attest-network/attestor/x/attestation"
	"github.com/attest-network/attestor/x/catalog"
	"github.com/attest-network/attestor/x/lifecycle"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "attestor",
		Short: "Attestation pipeline orchestrator",
		Long:  banner + "\n\nDrives attestation requests through verification, on-chain submission and proof retrieval.",
		RunE:  runApp,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}

	attestCmd = &cobra.Command{
		Use:   "attest",
		Short: "Run one attestation lifecycle and print the outcome",
		RunE:  runAttest,
	}

	proofCmd = &cobra.Command{
		Use:   "proof",
		Short: "Re-poll the availability layer for a submitted request",
		RunE:  runProof,
	}

	searchCmd = &cobra.Command{
		Use:   "search",
		Short: "Run a catalog search without attesting",
		RunE:  runSearch,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE:  runConfigShow,
	}
)

const banner = `
 █████╗ ████████╗████████╗███████╗███████╗████████╗ ██████╗ ██████╗
██╔══██╗╚══██╔══╝╚══██╔══╝██╔════╝██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗
███████║   ██║      ██║   █████╗  ███████╗   ██║   ██║   ██║██████╔╝
██╔══██║   ██║      ██║   ██╔══╝  ╚════██║   ██║   ██║   ██║██╔══██╗
██║  ██║   ██║      ██║   ███████╗███████║   ██║   ╚██████╔╝██║  ██║
╚═╝  ╚═╝   ╚═╝      ╚═╝   ╚══════╝╚══════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝`

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(attestCmd)
	rootCmd.AddCommand(proofCmd)
	rootCmd.AddCommand(searchCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config",
		"attestor-app/configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")

	attestCmd.Flags().String("kind", string(lifecycle.ClaimKindEVM), "claim kind (evm, web2, satellite)")
	attestCmd.Flags().String("source", "testETH", "source chain id for evm claims")
	attestCmd.Flags().String("tx", "", "transaction hash for evm claims")
	attestCmd.Flags().String("url", "", "target url for web2 claims")
	attestCmd.Flags().String("jq", "", "post-process jq expression")
	attestCmd.Flags().String("abi", "", "abi signature of the jq output")
	attestCmd.Flags().String("data-type", "S2MSI2A", "dataset id for satellite claims")
	attestCmd.Flags().String("start", "", "search start date (YYYY-MM-DD)")
	attestCmd.Flags().String("end", "", "search end date (YYYY-MM-DD)")

	proofCmd.Flags().Uint64("round", 0, "voting round of the submission")
	proofCmd.Flags().String("request-bytes", "", "hex encoded request bytes")
	proofCmd.Flags().String("tx", "", "submission transaction hash, used to recover the request bytes")
	_ = proofCmd.MarkFlagRequired("round")

	searchCmd.Flags().String("data-type", "S2MSI2A", "dataset id")
	searchCmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	searchCmd.Flags().String("end", "", "end date (YYYY-MM-DD)")
	searchCmd.Flags().Int("cloud-max", 0, "maximum cloud cover percent")
	searchCmd.Flags().Int("limit", 0, "maximum results")
	_ = searchCmd.MarkFlagRequired("start")
	_ = searchCmd.MarkFlagRequired("end")
}

func loadConfig(cmd *cobra.Command) (*config.Config, log.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, log.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flag("log-level").Changed {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flag("log-pretty").Changed {
		cfg.Log.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}

	return cfg, log.New(cfg.Log.Level, cfg.Log.Pretty), nil
}

func runApp(cmd *cobra.Command, _ []string) error {
	fmt.Println(banner)
	fmt.Println()

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")

	logger.Info().
		Str("config_file", cfgFile).
		Str("api_listen_addr", cfg.API.ListenAddr).
		Str("rpc", cfg.Chain.RPCEndpoint).
		Str("log_level", cfg.Log.Level).
		Msg("Configuration loaded")

	application, err := NewApp(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(cmd.Context())
}

func runAttest(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	kind, _ := cmd.Flags().GetString("kind")
	claim := lifecycle.Claim{Kind: lifecycle.ClaimKind(kind)}
	switch claim.Kind {
	case lifecycle.ClaimKindEVM:
		claim.SourceID, _ = cmd.Flags().GetString("source")
		claim.TxHash, _ = cmd.Flags().GetString("tx")
	case lifecycle.ClaimKindWeb2:
		claim.URL, _ = cmd.Flags().GetString("url")
		claim.PostProcessJQ, _ = cmd.Flags().GetString("jq")
		claim.ABISignature, _ = cmd.Flags().GetString("abi")
	case lifecycle.ClaimKindSatellite:
		dataType, _ := cmd.Flags().GetString("data-type")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		claim.Search = &catalog.SearchParams{DataType: dataType, StartDate: start, EndDate: end}
	}

	application, err := NewApp(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Close()

	outcome, err := application.Orchestrator().Run(cmd.Context(), claim)
	if outcome != nil {
		printJSON(outcome)
	}
	return err
}

func runProof(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	round, _ := cmd.Flags().GetUint64("round")
	requestHex, _ := cmd.Flags().GetString("request-bytes")
	txHex, _ := cmd.Flags().GetString("tx")
	if requestHex == "" && txHex == "" {
		return fmt.Errorf("either --request-bytes or --tx is required")
	}

	application, err := NewApp(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Close()

	var encoded []byte
	if requestHex != "" {
		if encoded, err = attestation.DecodeHex(requestHex); err != nil {
			return fmt.Errorf("invalid request bytes: %w", err)
		}
	} else {
		if encoded, _, err = application.RequestBytesFromTx(cmd.Context(), common.HexToHash(txHex)); err != nil {
			return err
		}
	}

	proof, err := application.Orchestrator().FetchProof(cmd.Context(), round, encoded)
	if err != nil {
		return err
	}
	printJSON(proof)
	return nil
}

func runSearch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dataType, _ := cmd.Flags().GetString("data-type")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	cloudMax, _ := cmd.Flags().GetInt("cloud-max")
	limit, _ := cmd.Flags().GetInt("limit")

	client := catalog.NewClient(cfg.Catalog, logger.Logger)
	planner := catalog.NewPlanner(client, cfg.Catalog, logger.Logger)

	result, err := planner.Search(cmd.Context(), catalog.SearchParams{
		DataType:      dataType,
		StartDate:     start,
		EndDate:       end,
		CloudCoverMax: cloudMax,
		Limit:         limit,
	})
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Secrets stay out of terminal output.
	cfg.Chain.PrivateKeyHex = redact(cfg.Chain.PrivateKeyHex)
	cfg.Verifier.APIKey = redact(cfg.Verifier.APIKey)
	cfg.DALayer.APIKey = redact(cfg.DALayer.APIKey)
	cfg.Catalog.ClientSecret = redact(cfg.Catalog.ClientSecret)

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

func runVersion(*cobra.Command, []string) {
	fmt.Println(banner)
	fmt.Println()
	fmt.Printf("Attestor\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/attest-network/attestor/server/api"
	"github.com/attest-network/attestor/x/catalog"
	"github.com/attest-network/attestor/x/chain"
	"github.com/attest-network/attestor/x/dalayer"
	"github.com/attest-network/attestor/x/rounds"
	"github.com/attest-network/attestor/x/verifier"
)

// Config holds the complete application configuration.
type Config struct {
	Log      LogConfig       `mapstructure:"log"      yaml:"log"`
	API      api.Config      `mapstructure:"api"      yaml:"api"`
	Metrics  MetricsConfig   `mapstructure:"metrics"  yaml:"metrics"`
	Chain    chain.Config    `mapstructure:"chain"    yaml:"chain"`
	Verifier verifier.Config `mapstructure:"verifier" yaml:"verifier"`
	DALayer  dalayer.Config  `mapstructure:"da_layer" yaml:"da_layer"`
	Rounds   rounds.Config   `mapstructure:"rounds"   yaml:"rounds"`
	Catalog  catalog.Config  `mapstructure:"catalog"  yaml:"catalog"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// MetricsConfig holds metrics exposure configuration. Metrics are
// served on the API server's router.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `mapstructure:"path"    yaml:"path"    env:"METRICS_PATH"`
}

// Load reads configuration from the given file and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		// Missing file is fine, defaults plus environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvAliases(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvAliases honors the flat environment variable names the
// deployment scripts use.
func applyEnvAliases(cfg *Config) {
	alias := func(target *string, names ...string) {
		if strings.TrimSpace(*target) != "" {
			return
		}
		for _, name := range names {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				*target = v
				return
			}
		}
	}

	alias(&cfg.Chain.RPCEndpoint, "RPC_URL")
	alias(&cfg.Chain.PrivateKeyHex, "ATTESTOR_PRIVATE_KEY", "PRIVATE_KEY")
	alias(&cfg.Chain.RegistryContract, "FLARE_CONTRACT_REGISTRY")
	alias(&cfg.Verifier.EVMBaseURL, "EVM_VERIFIER_API")
	alias(&cfg.Verifier.Web2BaseURL, "JSONAPI_VERIFIER_API")
	alias(&cfg.Verifier.APIKey, "VERIFIER_API_KEY")
	alias(&cfg.DALayer.BaseURL, "DA_LAYER_API")
	alias(&cfg.DALayer.APIKey, "DA_LAYER_API_KEY")
	alias(&cfg.Catalog.ClientID, "CDSE_CLIENT_ID")
	alias(&cfg.Catalog.ClientSecret, "CDSE_CLIENT_SECRET")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("api.listen_addr", ":8081")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "120s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.max_header_bytes", 1048576)
	v.SetDefault("api.shutdown_timeout", "10s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Coston2 testnet by default, matching the public verifier and DA
	// layer deployments below.
	v.SetDefault("chain.rpc_endpoint", "https://coston2-api.flare.network/ext/C/rpc")
	v.SetDefault("chain.registry_contract", "0xaD67FE66660Fb8dFE9d6b1b4240d8650e30F6019")

	chainDefaults := chain.DefaultConfig()
	v.SetDefault("chain.priority_fee_floor_gwei", chainDefaults.PriorityFeeFloorGwei)
	v.SetDefault("chain.fee_history_blocks", chainDefaults.FeeHistoryBlocks)
	v.SetDefault("chain.reward_percentile", chainDefaults.RewardPercentile)
	v.SetDefault("chain.gas_limit_buffer_pct", chainDefaults.GasLimitBufferPct)
	v.SetDefault("chain.receipt_timeout", chainDefaults.ReceiptTimeout)
	v.SetDefault("chain.receipt_poll", chainDefaults.ReceiptPoll)
	v.SetDefault("chain.max_replacements", chainDefaults.MaxReplacements)
	v.SetDefault("chain.call_timeout", chainDefaults.CallTimeout)

	v.SetDefault("verifier.evm_base_url", "https://fdc-verifiers-testnet.flare.network")
	v.SetDefault("verifier.web2_base_url", "https://jq-verifier-test.flare.rocks")
	v.SetDefault("verifier.request_timeout", verifier.DefaultConfig().RequestTimeout)

	daDefaults := dalayer.DefaultConfig()
	v.SetDefault("da_layer.base_url", "https://ctn2-data-availability.flare.network")
	v.SetDefault("da_layer.window", daDefaults.Window)
	v.SetDefault("da_layer.request_timeout", daDefaults.RequestTimeout)
	v.SetDefault("da_layer.max_wait", daDefaults.MaxWait)
	v.SetDefault("da_layer.poll_interval", daDefaults.PollInterval)
	v.SetDefault("da_layer.max_poll_interval", daDefaults.MaxPollInterval)

	catalogDefaults := catalog.DefaultConfig()
	v.SetDefault("catalog.stac_base_url", catalogDefaults.STACBaseURL)
	v.SetDefault("catalog.token_url", catalogDefaults.TokenURL)
	v.SetDefault("catalog.request_timeout", catalogDefaults.RequestTimeout)
	v.SetDefault("catalog.cloud_cover_max", catalogDefaults.CloudCoverMax)
	v.SetDefault("catalog.limit", catalogDefaults.Limit)
}

// Validate checks the parts of the configuration every run needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chain.RPCEndpoint) == "" {
		return fmt.Errorf("chain.rpc_endpoint is required")
	}
	if strings.TrimSpace(c.Chain.RegistryContract) == "" {
		return fmt.Errorf("chain.registry_contract is required")
	}
	if c.Chain.MaxReplacements < 0 {
		return fmt.Errorf("chain.max_replacements must not be negative")
	}
	if strings.TrimSpace(c.Verifier.EVMBaseURL) == "" && strings.TrimSpace(c.Verifier.Web2BaseURL) == "" {
		return fmt.Errorf("at least one verifier base url is required")
	}
	if strings.TrimSpace(c.DALayer.BaseURL) == "" {
		return fmt.Errorf("da_layer.base_url is required")
	}
	if strings.TrimSpace(c.API.ListenAddr) == "" {
		return fmt.Errorf("api.listen_addr is required")
	}
	return nil
}

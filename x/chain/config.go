package chain

import "time"

// Config holds ledger integration configuration.
type Config struct {
	// RPCEndpoint to the ledger node.
	RPCEndpoint string `mapstructure:"rpc_endpoint" yaml:"rpc_endpoint" env:"CHAIN_RPC_ENDPOINT"`

	// RegistryContract is the on-chain registry used to resolve the
	// attestation hub, fee configuration, and systems manager.
	RegistryContract string `mapstructure:"registry_contract" yaml:"registry_contract" env:"CHAIN_REGISTRY_CONTRACT"`

	// PrivateKeyHex signs submission transactions.
	PrivateKeyHex string `mapstructure:"private_key_hex" yaml:"private_key_hex" env:"CHAIN_PRIVATE_KEY_HEX"`

	// Fee parameters.
	PriorityFeeFloorGwei uint64 `mapstructure:"priority_fee_floor_gwei" yaml:"priority_fee_floor_gwei"`
	FeeHistoryBlocks     uint64 `mapstructure:"fee_history_blocks"      yaml:"fee_history_blocks"`
	RewardPercentile     float64 `mapstructure:"reward_percentile"      yaml:"reward_percentile"`

	// Submission parameters.
	GasLimitBufferPct uint64        `mapstructure:"gas_limit_buffer_pct" yaml:"gas_limit_buffer_pct"`
	ReceiptTimeout    time.Duration `mapstructure:"receipt_timeout"      yaml:"receipt_timeout"`
	ReceiptPoll       time.Duration `mapstructure:"receipt_poll"         yaml:"receipt_poll"`
	MaxReplacements   int           `mapstructure:"max_replacements"     yaml:"max_replacements"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"         yaml:"call_timeout"`
}

func DefaultConfig() Config {
	return Config{
		PriorityFeeFloorGwei: 5,
		FeeHistoryBlocks:     5,
		RewardPercentile:     90,
		GasLimitBufferPct:    20,
		ReceiptTimeout:       10 * time.Minute,
		ReceiptPoll:          3 * time.Second,
		MaxReplacements:      3,
		CallTimeout:          30 * time.Second,
	}
}

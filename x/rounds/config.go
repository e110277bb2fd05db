package rounds

// Fallback epoch parameters for Flare-family networks, used when no
// systems manager contract is resolvable on chain. Rounds computed from
// these are flagged as degraded.
const (
	FallbackEpochStart    uint64 = 1658429073
	FallbackEpochDuration uint64 = 90
)

// Config controls voting round resolution.
type Config struct {
	// EpochStart overrides the genesis timestamp of voting round zero,
	// in unix seconds. Zero means read it from the chain.
	EpochStart uint64 `mapstructure:"epoch_start" yaml:"epoch_start"`

	// EpochDuration overrides the round length in seconds. Zero means
	// read it from the chain.
	EpochDuration uint64 `mapstructure:"epoch_duration" yaml:"epoch_duration"`
}

// DefaultConfig reads everything from the chain and keeps the static
// constants as a last resort.
func DefaultConfig() Config {
	return Config{}
}

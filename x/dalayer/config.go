package dalayer

import "time"

// Config controls DA layer proof retrieval.
type Config struct {
	// BaseURL is the DA layer API root, without a trailing slash.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" env:"DA_LAYER_URL"`

	// APIKey is sent as X-API-KEY when set.
	APIKey string `mapstructure:"api_key" yaml:"api_key" env:"DA_LAYER_API_KEY"`

	// Window is how many rounds past the submission round are scanned
	// for a finalized proof.
	Window uint64 `mapstructure:"window" yaml:"window"`

	// RequestTimeout bounds each individual endpoint call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// MaxWait bounds the total time spent re-sweeping the window while
	// the proof is not yet finalized. Zero disables re-sweeping and a
	// single pass is made.
	MaxWait time.Duration `mapstructure:"max_wait" yaml:"max_wait"`

	// PollInterval is the initial delay between sweeps; the actual
	// delay backs off exponentially up to MaxPollInterval.
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval" yaml:"max_poll_interval"`
}

// DefaultConfig matches the public Flare DA layer deployment cadence:
// proofs usually finalize two to three 90 second rounds after voting.
func DefaultConfig() Config {
	return Config{
		Window:          10,
		RequestTimeout:  20 * time.Second,
		MaxWait:         10 * time.Minute,
		PollInterval:    5 * time.Second,
		MaxPollInterval: 45 * time.Second,
	}
}

package verifier

import "time"

// Config holds verifier endpoint configuration. Claim families are
// served by different verifier deployments, hence two base URLs.
type Config struct {
	// EVMBaseURL serves EVMTransaction prepareRequest.
	EVMBaseURL string `mapstructure:"evm_base_url" yaml:"evm_base_url" env:"VERIFIER_EVM_BASE"`

	// Web2BaseURL serves JsonApi prepareRequest.
	Web2BaseURL string `mapstructure:"web2_base_url" yaml:"web2_base_url" env:"VERIFIER_WEB2_BASE"`

	// APIKey is sent as X-API-KEY on every call.
	APIKey string `mapstructure:"api_key" yaml:"api_key" env:"VERIFIER_API_KEY"`

	// RequestTimeout bounds each prepareRequest call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
	}
}

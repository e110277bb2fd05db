package catalog

import "time"

// Config controls the Copernicus Data Space STAC client.
type Config struct {
	// STACBaseURL is the STAC API root, without a trailing slash.
	STACBaseURL string `mapstructure:"stac_base_url" yaml:"stac_base_url"`

	// TokenURL is the OAuth client-credentials token endpoint.
	TokenURL string `mapstructure:"token_url" yaml:"token_url"`

	// ClientID and ClientSecret authenticate against the data space.
	// When either is empty the client operates anonymously; public
	// collections remain searchable.
	ClientID     string `mapstructure:"client_id" yaml:"client_id" env:"CDSE_CLIENT_ID"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret" env:"CDSE_CLIENT_SECRET"`

	// RequestTimeout bounds each catalog call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// CloudCoverMax is the default ceiling, percent, for the first
	// search phases.
	CloudCoverMax int `mapstructure:"cloud_cover_max" yaml:"cloud_cover_max"`

	// Limit is the default maximum number of scenes per search.
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// DefaultConfig targets the public CDSE deployment.
func DefaultConfig() Config {
	return Config{
		STACBaseURL:    "https://stac.dataspace.copernicus.eu/v1",
		TokenURL:       "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token",
		RequestTimeout: 30 * time.Second,
		CloudCoverMax:  10,
		Limit:          10,
	}
}

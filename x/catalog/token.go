package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// expiryBuffer refreshes the token a minute before it actually lapses.
const expiryBuffer = time.Minute

// tokenSource caches an OAuth client-credentials token. Without
// configured credentials it stays anonymous and Token returns "".
type tokenSource struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSource(cfg Config, httpClient *http.Client, log zerolog.Logger) *tokenSource {
	return &tokenSource{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log,
		now:        time.Now,
	}
}

// tokenValid reports whether a cached token is still usable at the
// given instant, keeping the refresh buffer.
func tokenValid(token string, expiry, now time.Time) bool {
	return token != "" && now.Before(expiry.Add(-expiryBuffer))
}

// Token returns a bearer token, refreshing the cache when needed. An
// empty token with nil error means anonymous mode.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenValid(s.token, s.expiry, s.now()) {
		return s.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", fmt.Errorf("decode token grant: %w", err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}

	s.token = grant.AccessToken
	s.expiry = s.now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	s.log.Info().Time("expiry", s.expiry).Msg("catalog access token refreshed")

	return s.token, nil
}

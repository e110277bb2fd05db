package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// stacCollections maps product dataset ids to STAC collection names.
var stacCollections = map[string]string{
	"S2MSI2A": "sentinel-2-l2a",
	"S1GRD":   "sentinel-1-grd",
	"S3OLCI":  "sentinel-3-olci",
}

const defaultCollection = "sentinel-2-l2a"

// CollectionFor resolves a dataset id to its STAC collection, falling
// back to Sentinel-2 L2A for unknown ids.
func CollectionFor(dataType string) string {
	if c, ok := stacCollections[dataType]; ok {
		return c
	}
	return defaultCollection
}

// Asset is one downloadable artifact attached to a catalog feature.
type Asset struct {
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// feature is the raw STAC item shape the search endpoint returns.
type feature struct {
	ID         string           `json:"id"`
	BBox       []float64        `json:"bbox"`
	Geometry   json.RawMessage  `json:"geometry"`
	Properties json.RawMessage  `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

// Client performs STAC searches against the Copernicus Data Space.
type Client struct {
	httpClient *http.Client
	tokens     *tokenSource
	cfg        Config
	log        zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	componentLog := log.With().Str("component", "catalog").Logger()
	return &Client{
		httpClient: httpClient,
		tokens:     newTokenSource(cfg, httpClient, componentLog),
		cfg:        cfg,
		log:        componentLog,
	}
}

type searchPayload struct {
	Collections []string       `json:"collections"`
	BBox        BBox           `json:"bbox"`
	Datetime    string         `json:"datetime"`
	Filter      map[string]any `json:"filter"`
	Limit       int            `json:"limit"`
	SortBy      []sortField    `json:"sortby"`
}

type sortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// search runs one STAC query, lowest cloud cover first.
func (c *Client) search(ctx context.Context, collection string, box BBox, datetimeRange string, cloudMax, limit int) ([]feature, error) {
	payload := searchPayload{
		Collections: []string{collection},
		BBox:        box,
		Datetime:    datetimeRange,
		Filter: map[string]any{
			"op": "and",
			"args": []any{
				map[string]any{
					"op": "<=",
					"args": []any{
						map[string]any{"property": "eo:cloud_cover"},
						cloudMax,
					},
				},
			},
		},
		Limit:  limit,
		SortBy: []sortField{{Field: "eo:cloud_cover", Direction: "asc"}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.STACBaseURL, "/")+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		// Public collections still answer anonymously.
		c.log.Warn().Err(err).Msg("token refresh failed, searching anonymously")
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stac search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, fmt.Errorf("stac search returned %d: %s", resp.StatusCode,
			strings.TrimSpace(string(raw)))
	}

	var page struct {
		Features []feature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return page.Features, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// thumbnailAssets are tried in order when flattening a feature.
var thumbnailAssets = []string{"thumbnail", "preview", "overview", "browse"}

// strategy is one step of the progressive search plan.
type strategy struct {
	daysBefore int
	daysAfter  int
	cloudMax   int
	label      string
}

// planFor builds the fallback ladder: first the requested window at the
// requested cloud ceiling, then progressively wider windows, then wider
// windows with relaxed ceilings.
func planFor(cloudMax int) []strategy {
	return []strategy{
		{0, 0, cloudMax, "original date range"},
		{7, 7, cloudMax, "±1 week expanded"},
		{14, 14, cloudMax, "±2 weeks expanded"},
		{30, 30, cloudMax, "±1 month expanded"},
		{7, 7, 15, "±1 week, 15% clouds"},
		{14, 14, 15, "±2 weeks, 15% clouds"},
		{30, 30, 20, "±1 month, 20% clouds"},
	}
}

// SearchParams describe one catalog query before planning.
type SearchParams struct {
	DataType    string          `json:"dataType"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	// CloudCoverMax overrides the configured ceiling when positive.
	CloudCoverMax int `json:"cloudCoverMax,omitempty"`
	// Limit overrides the configured page size when positive.
	Limit int `json:"limit,omitempty"`
}

// Scene is a flattened catalog hit.
type Scene struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Datetime     string           `json:"datetime,omitempty"`
	CloudCover   float64          `json:"cloudCover"`
	ThumbnailURL string           `json:"thumbnailUrl,omitempty"`
	Assets       map[string]Asset `json:"assets,omitempty"`
	Properties   json.RawMessage  `json:"properties,omitempty"`
	BBox         []float64        `json:"bbox,omitempty"`
	Geometry     json.RawMessage  `json:"geometry,omitempty"`
	Strategy     string           `json:"searchStrategy"`
	DateRange    string           `json:"searchDateRange"`
}

// Attempt records one strategy evaluation.
type Attempt struct {
	Label     string `json:"label"`
	CloudMax  int    `json:"cloudMax"`
	DateRange string `json:"dateRange"`
	Count     int    `json:"count"`
	Error     string `json:"error,omitempty"`
}

// Result is the planner outcome, including the attempt trail.
type Result struct {
	Scenes         []Scene   `json:"scenes"`
	Attempts       []Attempt `json:"attempts"`
	StrategyUsed   string    `json:"strategyUsed,omitempty"`
	DateRangeUsed  string    `json:"dateRangeUsed,omitempty"`
	CloudCoverUsed int       `json:"cloudCoverUsed"`
}

// Planner runs the progressive search ladder over a catalog client.
// The first strategy producing any scene wins; later strategies are
// never evaluated.
type Planner struct {
	client *Client
	cfg    Config
	log    zerolog.Logger
}

func NewPlanner(client *Client, cfg Config, log zerolog.Logger) *Planner {
	return &Planner{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "planner").Logger(),
	}
}

// Search walks the strategy ladder until one yields scenes. All scenes
// carry the winning strategy's label and effective date window. When
// every strategy comes up empty the result holds no scenes and the
// full attempt log.
func (p *Planner) Search(ctx context.Context, params SearchParams) (*Result, error) {
	if params.StartDate == "" || params.EndDate == "" {
		return nil, fmt.Errorf("catalog search requires a start and end date")
	}

	cloudMax := params.CloudCoverMax
	if cloudMax <= 0 {
		cloudMax = p.cfg.CloudCoverMax
	}
	limit := params.Limit
	if limit <= 0 {
		limit = p.cfg.Limit
	}

	collection := CollectionFor(params.DataType)
	box := ParseCoordinates(params.Coordinates)

	result := &Result{CloudCoverUsed: cloudMax}

	for _, step := range planFor(cloudMax) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start, end, datetimeRange := expandWindow(params.StartDate, params.EndDate, step.daysBefore, step.daysAfter)
		window := start + " to " + end
		attempt := Attempt{Label: step.label, CloudMax: step.cloudMax, DateRange: window}

		p.log.Info().
			Str("strategy", step.label).
			Int("cloud_max", step.cloudMax).
			Str("window", window).
			Str("collection", collection).
			Msg("catalog search attempt")

		features, err := p.client.search(ctx, collection, box, datetimeRange, step.cloudMax, limit)
		if err != nil {
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			p.log.Warn().Err(err).Str("strategy", step.label).Msg("catalog search attempt failed")
			continue
		}

		attempt.Count = len(features)
		result.Attempts = append(result.Attempts, attempt)

		if len(features) == 0 {
			continue
		}

		result.StrategyUsed = step.label
		result.DateRangeUsed = window
		result.CloudCoverUsed = step.cloudMax
		for _, f := range features {
			result.Scenes = append(result.Scenes, flatten(f, step.label, window))
		}

		p.log.Info().
			Int("scenes", len(result.Scenes)).
			Str("strategy", step.label).
			Msg("catalog search satisfied")
		return result, nil
	}

	p.log.Warn().
		Int("attempts", len(result.Attempts)).
		Msg("catalog search exhausted all strategies")
	return result, nil
}

// ItemURL is the canonical STAC item endpoint for a scene, suitable as
// an attestable JSON source.
func (p *Planner) ItemURL(dataType, sceneID string) string {
	return strings.TrimRight(p.cfg.STACBaseURL, "/") +
		"/collections/" + CollectionFor(dataType) + "/items/" + sceneID
}

// flatten turns a raw STAC feature into a scene, picking the best
// available preview asset.
func flatten(f feature, label, window string) Scene {
	var props struct {
		Datetime   string  `json:"datetime"`
		CloudCover float64 `json:"eo:cloud_cover"`
	}
	_ = json.Unmarshal(f.Properties, &props)

	var thumbnail string
	for _, name := range thumbnailAssets {
		if asset, ok := f.Assets[name]; ok && asset.Href != "" {
			thumbnail = asset.Href
			break
		}
	}

	return Scene{
		ID:           f.ID,
		Name:         f.ID,
		Datetime:     props.Datetime,
		CloudCover:   props.CloudCover,
		ThumbnailURL: thumbnail,
		Assets:       f.Assets,
		Properties:   f.Properties,
		BBox:         f.BBox,
		Geometry:     f.Geometry,
		Strategy:     label,
		DateRange:    window,
	}
}

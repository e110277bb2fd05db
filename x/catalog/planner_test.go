package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordedSearch struct {
	Collections []string    `json:"collections"`
	Datetime    string      `json:"datetime"`
	Limit       int         `json:"limit"`
	Filter      json.RawMessage `json:"filter"`
	SortBy      []sortField `json:"sortby"`
}

type stacScript struct {
	mu       sync.Mutex
	searches []recordedSearch
	// answers[i] is returned for the i-th search; out of range means
	// an empty feature collection.
	answers map[int][]map[string]any
}

func (s *stacScript) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec recordedSearch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))

		s.mu.Lock()
		idx := len(s.searches)
		s.searches = append(s.searches, rec)
		features := s.answers[idx]
		s.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{"features": features})
	}
}

func (s *stacScript) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

func (s *stacScript) at(i int) recordedSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches[i]
}

func newTestPlanner(t *testing.T, script *stacScript) (*Planner, func()) {
	t.Helper()
	srv := httptest.NewServer(script.handler(t))
	cfg := DefaultConfig()
	cfg.STACBaseURL = srv.URL
	client := NewClient(cfg, zerolog.Nop())
	return NewPlanner(client, cfg, zerolog.Nop()), srv.Close
}

func sampleFeature(id string, cloud float64) map[string]any {
	return map[string]any{
		"id": id,
		"properties": map[string]any{
			"datetime":       "2024-03-11T10:30:00Z",
			"eo:cloud_cover": cloud,
		},
		"assets": map[string]any{
			"preview": map[string]any{"href": "https://cdn.example/" + id + ".jpg"},
		},
		"bbox": []float64{2.1, 41.3, 2.3, 41.5},
	}
}

func TestPlannerGreedyFirstSuccess(t *testing.T) {
	t.Parallel()

	script := &stacScript{answers: map[int][]map[string]any{
		2: {sampleFeature("S2A_0001", 4.2), sampleFeature("S2A_0002", 8.9)},
	}}
	planner, closeSrv := newTestPlanner(t, script)
	defer closeSrv()

	result, err := planner.Search(context.Background(), SearchParams{
		DataType:  "S2MSI2A",
		StartDate: "2024-03-10",
		EndDate:   "2024-03-12",
	})
	require.NoError(t, err)

	// Strategies one and two came up empty; the third satisfied the
	// search and nothing beyond it was evaluated.
	require.Len(t, result.Attempts, 3)
	require.Equal(t, 3, script.count())
	require.Equal(t, "±2 weeks expanded", result.StrategyUsed)
	require.Equal(t, "2024-02-25 to 2024-03-26", result.DateRangeUsed)
	require.Equal(t, 10, result.CloudCoverUsed)

	require.Len(t, result.Scenes, 2)
	scene := result.Scenes[0]
	require.Equal(t, "S2A_0001", scene.ID)
	require.Equal(t, 4.2, scene.CloudCover)
	require.Equal(t, "https://cdn.example/S2A_0001.jpg", scene.ThumbnailURL)
	require.Equal(t, "±2 weeks expanded", scene.Strategy)
	require.Equal(t, "2024-02-25 to 2024-03-26", scene.DateRange)
}

func TestPlannerAttemptOrderAndWidening(t *testing.T) {
	t.Parallel()

	script := &stacScript{answers: map[int][]map[string]any{}}
	planner, closeSrv := newTestPlanner(t, script)
	defer closeSrv()

	result, err := planner.Search(context.Background(), SearchParams{
		DataType:  "S1GRD",
		StartDate: "2024-03-10",
		EndDate:   "2024-03-12",
	})
	require.NoError(t, err)
	require.Empty(t, result.Scenes)
	require.Len(t, result.Attempts, 7)
	require.Equal(t, 7, script.count())

	labels := make([]string, 0, len(result.Attempts))
	ceilings := make([]int, 0, len(result.Attempts))
	for _, a := range result.Attempts {
		labels = append(labels, a.Label)
		ceilings = append(ceilings, a.CloudMax)
		require.Zero(t, a.Count)
	}
	require.Equal(t, []string{
		"original date range",
		"±1 week expanded",
		"±2 weeks expanded",
		"±1 month expanded",
		"±1 week, 15% clouds",
		"±2 weeks, 15% clouds",
		"±1 month, 20% clouds",
	}, labels)
	require.Equal(t, []int{10, 10, 10, 10, 15, 15, 20}, ceilings)

	// The collection mapping and widening windows reach the wire.
	require.Equal(t, []string{"sentinel-1-grd"}, script.at(0).Collections)
	require.Equal(t, "2024-03-10T00:00:00Z/2024-03-12T23:59:59Z", script.at(0).Datetime)
	require.Equal(t, "2024-02-09T00:00:00Z/2024-04-11T23:59:59Z", script.at(3).Datetime)
	require.Equal(t, []sortField{{Field: "eo:cloud_cover", Direction: "asc"}}, script.at(0).SortBy)
}

func TestPlannerUnknownDatasetDefaults(t *testing.T) {
	t.Parallel()

	script := &stacScript{answers: map[int][]map[string]any{
		0: {sampleFeature("S2B_0001", 1.0)},
	}}
	planner, closeSrv := newTestPlanner(t, script)
	defer closeSrv()

	result, err := planner.Search(context.Background(), SearchParams{
		DataType:  "UNKNOWN-SENSOR",
		StartDate: "2024-03-10",
		EndDate:   "2024-03-12",
	})
	require.NoError(t, err)
	require.Equal(t, "original date range", result.StrategyUsed)
	require.Equal(t, []string{"sentinel-2-l2a"}, script.at(0).Collections)
}

func TestPlannerThumbnailPreference(t *testing.T) {
	t.Parallel()

	f := feature{
		ID: "scene",
		Assets: map[string]Asset{
			"overview":  {Href: "https://cdn.example/overview.jpg"},
			"browse":    {Href: "https://cdn.example/browse.jpg"},
			"thumbnail": {Href: "https://cdn.example/thumb.jpg"},
		},
	}
	scene := flatten(f, "original date range", "2024-03-10 to 2024-03-12")
	require.Equal(t, "https://cdn.example/thumb.jpg", scene.ThumbnailURL)

	delete(f.Assets, "thumbnail")
	scene = flatten(f, "original date range", "2024-03-10 to 2024-03-12")
	require.Equal(t, "https://cdn.example/overview.jpg", scene.ThumbnailURL)
}

func TestPlannerRequiresDates(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(NewClient(DefaultConfig(), zerolog.Nop()), DefaultConfig(), zerolog.Nop())
	_, err := planner.Search(context.Background(), SearchParams{DataType: "S2MSI2A"})
	require.Error(t, err)
}

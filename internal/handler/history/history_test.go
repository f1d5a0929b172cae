package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backflow/internal/model"
	"backflow/pkg/errors/ecode"
	"backflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	got model.HistoryQuery
	err error
}

func (f *fakeHistory) SaveMetrics(context.Context, string, time.Time, *model.StrategyMetrics) error {
	return nil
}

func (f *fakeHistory) SaveComparison(context.Context, string, *model.ComparisonResult) error {
	return nil
}

func (f *fakeHistory) ListMetrics(_ context.Context, q model.HistoryQuery) ([]model.MetricsSnapshot, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return []model.MetricsSnapshot{{
		RunID:           "1",
		RunDate:         time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		StrategyMetrics: model.StrategyMetrics{StrategyType: q.StrategyType, Version: "v2", TotalTrades: 13},
	}}, nil
}

func (f *fakeHistory) ListComparisons(_ context.Context, q model.HistoryQuery) ([]model.ComparisonSnapshot, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return []model.ComparisonSnapshot{{
		RunID:            "1",
		ComparisonResult: model.ComparisonResult{StrategyType: q.StrategyType, Recommendation: model.UseV2, CriteriaMet: 5},
	}}, nil
}

func (f *fakeHistory) DeleteRun(context.Context, time.Time, string) error { return nil }

func engine(h *fakeHistory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	hh := NewHandler(h)
	g.GET("/comparisons", hh.ComparisonsGet())
	g.GET("/metrics", hh.MetricsGet())
	return g
}

func get(g *gin.Engine, url string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	g.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestComparisonsGet(t *testing.T) {
	h := &fakeHistory{}
	w, body := get(engine(h), "/comparisons?strategy_type=swing&since=2025-01-01&limit=10")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(ecode.Success), body["code"])
	assert.Equal(t, "swing", h.got.StrategyType)
	assert.Equal(t, 10, h.got.Limit)
	assert.True(t, h.got.Since.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.Equal(t, "use_v2", first["recommendation"])
	assert.Equal(t, "1", first["run_id"])
}

func TestMetricsGet(t *testing.T) {
	h := &fakeHistory{}
	w, body := get(engine(h), "/metrics?strategy_type=btst&version=v2")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v2", h.got.Version)
	data := body["data"].([]any)
	assert.Equal(t, float64(13), data[0].(map[string]any)["total_trades"])
}

func TestHistory_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing strategy type", "/comparisons"},
		{"limit out of range", "/metrics?strategy_type=swing&limit=1000"},
		{"bad date", "/metrics?strategy_type=swing&since=yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(engine(&fakeHistory{}), tt.url)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, float64(ecode.ValidateErr), body["code"])
		})
	}
}

func TestHistory_StoreError(t *testing.T) {
	w, body := get(engine(&fakeHistory{err: errors.New("connection refused")}), "/metrics?strategy_type=swing")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(ecode.DatabaseErr), body["code"])
	var resp response.ApiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Data)
}

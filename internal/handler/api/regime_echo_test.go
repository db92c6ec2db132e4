package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
	"RegimeChain/internal/repository"
	"RegimeChain/internal/usecase"
	"RegimeChain/pkg/cache"
)

type fakeReader struct {
	preds   map[string]models.Prediction
	records []models.TransitionRecord
	limit   int
}

func (f *fakeReader) Symbols() []string { return []string{"AAPL", "MSFT"} }

func (f *fakeReader) LatestPrediction(symbol string) (models.Prediction, bool) {
	p, ok := f.preds[symbol]
	return p, ok
}

func (f *fakeReader) TransitionTable(symbol string) (usecase.TableSnapshot, bool) {
	if symbol != "AAPL" {
		return usecase.TableSnapshot{}, false
	}
	snap := usecase.TableSnapshot{Symbol: symbol}
	for i := range snap.Table {
		for j := range snap.Table[i] {
			snap.Table[i][j] = 1.0 / float64(models.NumRegimes)
		}
	}
	snap.Counts[models.MiddayLull] = 3
	snap.Counts[models.Whipsaw] = 2
	return snap, true
}

func (f *fakeReader) ReturnDistributions(symbol string) (map[models.Regime][]float64, bool) {
	if symbol != "AAPL" {
		return nil, false
	}
	return map[models.Regime][]float64{
		models.MiddayLull:    {0.01, 0.03},
		models.Whipsaw:       {-0.02},
		models.OffHoursDrift: {},
	}, true
}

func (f *fakeReader) Records(symbol string, limit int) ([]models.TransitionRecord, bool) {
	f.limit = limit
	if symbol != "AAPL" {
		return nil, false
	}
	return f.records, true
}

func (f *fakeReader) Correlations() []models.CorrelationSnapshot {
	return []models.CorrelationSnapshot{{Symbol: "AAPL", Partner: "MSFT", Coefficient: 0.8, Influence: 0.8}}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*echo.Echo, *fakeReader, *RegimeEchoHandler) {
	t.Helper()
	fr := &fakeReader{
		preds: map[string]models.Prediction{
			"AAPL": {ID: "p1", Symbol: "AAPL", CurrentRegime: models.MiddayLull, Confidence: 0.42},
		},
		records: []models.TransitionRecord{{ID: "r1", Symbol: "AAPL", From: models.MiddayLull, To: models.Whipsaw}},
	}
	manual := usecase.NewManualBias()
	h := NewRegimeEchoHandler(nil, fr, manual, manual)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, fr, h
}

func call(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestPrediction(t *testing.T) {
	e, _, _ := setup(t)

	code, env := call(t, e, http.MethodGet, "/api/prediction?symbol=aapl", "")
	require.Equal(t, http.StatusOK, code)
	var p models.Prediction
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, models.MiddayLull, p.CurrentRegime)

	code, _ = call(t, e, http.MethodGet, "/api/prediction?symbol=TSLA", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, e, http.MethodGet, "/api/prediction", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPredictionFallsBackToCache(t *testing.T) {
	e, _, h := setup(t)
	pc := repository.NewCachedPredictions(cache.NewMemoryCache(), time.Minute)
	require.NoError(t, pc.SetPrediction(context.Background(),
		&models.Prediction{ID: "old", Symbol: "TSLA", CurrentRegime: models.Whipsaw}))
	h.SetPredictionCache(pc)

	req := httptest.NewRequest(http.MethodGet, "/api/prediction?symbol=tsla", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cache", rec.Header().Get(headerPredictionSource))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var p models.Prediction
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "old", p.ID)

	// the engine wins when it has a prediction
	req = httptest.NewRequest(http.MethodGet, "/api/prediction?symbol=AAPL", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "engine", rec.Header().Get(headerPredictionSource))

	code, _ := call(t, e, http.MethodGet, "/api/prediction?symbol=NVDA", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTransitions(t *testing.T) {
	e, _, _ := setup(t)

	code, env := call(t, e, http.MethodGet, "/api/transitions?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, code)

	var resp transitionsResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.Counts["midday_lull"])
	assert.Len(t, resp.Table, models.NumRegimes)
	assert.InDelta(t, 1.0/float64(models.NumRegimes), resp.Table["whipsaw"]["midday_lull"], 1e-12)
}

func TestReturns(t *testing.T) {
	e, _, _ := setup(t)

	code, env := call(t, e, http.MethodGet, "/api/returns?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		Returns map[string]returnStats `json:"returns"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Returns, 2)
	assert.InDelta(t, 0.02, resp.Returns["midday_lull"].Mean, 1e-12)
	assert.Equal(t, 0.0, resp.Returns["whipsaw"].StdDev)
}

func TestRecordsDefaultsAndValidatesLimit(t *testing.T) {
	e, fr, _ := setup(t)

	code, _ := call(t, e, http.MethodGet, "/api/records?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, fr.limit)

	code, _ = call(t, e, http.MethodGet, "/api/records?symbol=AAPL&limit=7", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 7, fr.limit)

	code, _ = call(t, e, http.MethodGet, "/api/records?symbol=AAPL&limit=9000", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSymbolsAndCorrelations(t *testing.T) {
	e, _, _ := setup(t)

	code, env := call(t, e, http.MethodGet, "/api/symbols", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total":2`)

	code, env = call(t, e, http.MethodGet, "/api/correlations", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"partner":"MSFT"`)
}

func TestMarketBiasOverride(t *testing.T) {
	e, _, _ := setup(t)

	code, env := call(t, e, http.MethodPut, "/api/market-bias", `{"bias":"bearish"}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"bias":"bearish","known":true}`, string(env.Data))

	code, env = call(t, e, http.MethodGet, "/api/market-bias", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"bias":"bearish","known":true}`, string(env.Data))

	code, env = call(t, e, http.MethodPut, "/api/market-bias", `{"clear":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"bias":"neutral","known":false}`, string(env.Data))

	code, _ = call(t, e, http.MethodPut, "/api/market-bias", `{"bias":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	e, _, h := setup(t)
	h.AddHealthCheck("clickhouse", func(context.Context) error { return nil })

	code, env := call(t, e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"clickhouse":"ok"`)

	h.AddHealthCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") })
	code, env = call(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)
	assert.Contains(t, string(env.Data), "refused")
}

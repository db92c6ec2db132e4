package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"gonum.org/v1/gonum/stat"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
	domsvc "RegimeChain/internal/domain/service"
	"RegimeChain/internal/usecase"
	xhttp "RegimeChain/pkg/http"
	xlogger "RegimeChain/pkg/logger"
	"RegimeChain/pkg/util"
)

// RegimeReader is the read side of the engine exposed over HTTP.
type RegimeReader interface {
	Symbols() []string
	LatestPrediction(symbol string) (models.Prediction, bool)
	TransitionTable(symbol string) (usecase.TableSnapshot, bool)
	ReturnDistributions(symbol string) (map[models.Regime][]float64, bool)
	Records(symbol string, limit int) ([]models.TransitionRecord, bool)
	Correlations() []models.CorrelationSnapshot
}

// BiasOverride sets or clears the operator's market bias.
type BiasOverride interface {
	Set(b models.Bias)
	Clear()
}

const headerPredictionSource = "X-Prediction-Source"

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// RegimeEchoHandler serves the introspection API.
type RegimeEchoHandler struct {
	logger   *xlogger.Logger
	engine   RegimeReader
	override BiasOverride
	bias     domsvc.MarketBiasProvider
	cache    domrepo.PredictionCache
	checks   map[string]HealthCheck
}

func NewRegimeEchoHandler(logger *xlogger.Logger, engine RegimeReader, override BiasOverride, bias domsvc.MarketBiasProvider) *RegimeEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RegimeEchoHandler{
		logger:   logger,
		engine:   engine,
		override: override,
		bias:     bias,
		checks:   map[string]HealthCheck{},
	}
}

// AddHealthCheck registers a dependency checked by /healthz.
func (h *RegimeEchoHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// SetPredictionCache serves cached predictions for symbols the engine has not
// seen since it started.
func (h *RegimeEchoHandler) SetPredictionCache(pc domrepo.PredictionCache) {
	h.cache = pc
}

func (h *RegimeEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/prediction", h.Prediction)
	g.GET("/transitions", h.Transitions)
	g.GET("/returns", h.Returns)
	g.GET("/records", h.Records)
	g.GET("/correlations", h.Correlations)
	g.GET("/market-bias", h.GetMarketBias)
	g.PUT("/market-bias", h.PutMarketBias)
}

func (h *RegimeEchoHandler) Symbols(c echo.Context) error {
	syms := h.engine.Symbols()
	return xhttp.ListResponse(c, syms, len(syms))
}

func (h *RegimeEchoHandler) Prediction(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym := util.NormalizeSymbol(req.Symbol)

	p, ok := h.engine.LatestPrediction(sym)
	source := "engine"
	if !ok && h.cache != nil {
		cached, err := h.cache.GetPrediction(c.Request().Context(), sym)
		if err != nil {
			h.logger.Debug("prediction cache miss", xlogger.String("symbol", sym), xlogger.Error(err))
		} else {
			p, ok, source = *cached, true, "cache"
		}
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no prediction for %s", sym))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	c.Response().Header().Set(headerPredictionSource, source)
	return xhttp.SuccessResponse(c, p)
}

type transitionsResponse struct {
	Symbol string                        `json:"symbol"`
	Table  map[string]map[string]float64 `json:"table"`
	Counts map[string]int                `json:"counts"`
	Total  int                           `json:"total"`
}

func (h *RegimeEchoHandler) Transitions(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym := util.NormalizeSymbol(req.Symbol)

	snap, ok := h.engine.TransitionTable(sym)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown symbol %s", sym))
	}

	resp := transitionsResponse{
		Symbol: snap.Symbol,
		Table:  snap.Table.Map(),
		Counts: make(map[string]int, models.NumRegimes),
	}
	for i, n := range snap.Counts {
		resp.Counts[models.Regime(i).String()] = n
		resp.Total += n
	}
	return xhttp.SuccessResponse(c, resp)
}

type returnStats struct {
	Count   int       `json:"count"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"std_dev"`
	Samples []float64 `json:"samples"`
}

func (h *RegimeEchoHandler) Returns(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym := util.NormalizeSymbol(req.Symbol)

	dists, ok := h.engine.ReturnDistributions(sym)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown symbol %s", sym))
	}

	out := make(map[string]returnStats, len(dists))
	for r, samples := range dists {
		if len(samples) == 0 {
			continue
		}
		rs := returnStats{Count: len(samples), Samples: samples}
		rs.Mean, rs.StdDev = stat.MeanStdDev(samples, nil)
		if len(samples) < 2 {
			rs.StdDev = 0
		}
		out[r.String()] = rs
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":  sym,
		"returns": out,
	})
}

func (h *RegimeEchoHandler) Records(c echo.Context) error {
	req := &models.RecordsRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym := util.NormalizeSymbol(req.Symbol)

	recs, ok := h.engine.Records(sym, req.Limit)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown symbol %s", sym))
	}
	return xhttp.ListResponse(c, recs, len(recs))
}

func (h *RegimeEchoHandler) Correlations(c echo.Context) error {
	snaps := h.engine.Correlations()
	return xhttp.ListResponse(c, snaps, len(snaps))
}

type marketBiasResponse struct {
	Bias  string `json:"bias"`
	Known bool   `json:"known"`
}

func (h *RegimeEchoHandler) GetMarketBias(c echo.Context) error {
	if h.bias == nil {
		return xhttp.SuccessResponse(c, marketBiasResponse{Bias: models.BiasNeutral.String()})
	}
	b, known := h.bias.MarketBias(c.Request().Context())
	return xhttp.SuccessResponse(c, marketBiasResponse{Bias: b.String(), Known: known})
}

func (h *RegimeEchoHandler) PutMarketBias(c echo.Context) error {
	req := &models.MarketBiasRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.override == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("manual market bias is disabled"))
	}

	if req.Clear || req.Bias == "" {
		h.override.Clear()
		h.logger.Info("market bias override cleared")
		return h.GetMarketBias(c)
	}

	b, err := models.ParseBias(req.Bias)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.FieldError("bias", err.Error()))
	}
	h.override.Set(b)
	h.logger.Info("market bias override set", xlogger.String("bias", b.String()))
	return h.GetMarketBias(c)
}

func (h *RegimeEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			h.logger.Warn("health check failed", xlogger.String("component", name), xlogger.Error(err))
			continue
		}
		components[name] = "ok"
	}

	return xhttp.DataResponse(c, status, map[string]interface{}{
		"symbols":    len(h.engine.Symbols()),
		"components": components,
	})
}

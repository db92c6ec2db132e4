package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, map[string]int{"n": 1}) })
	e.GET("/missing", func(c echo.Context) error { return AppErrorResponse(c, NotFoundErrorf("no such symbol %q", "ZZZ")) })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
	e.PUT("/echo", func(c echo.Context) error {
		var req struct {
			Name  string `json:"name" validate:"required"`
			Limit int    `json:"limit" default:"10" validate:"min=1,max=100"`
		}
		if errs := BindRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func newTestServer(opts ...ServerOption) *Server {
	reg := prometheus.NewRegistry()
	return NewServer(routes{}, append([]ServerOption{WithMetrics("/metrics", reg, reg)}, opts...)...)
}

func do(s *Server, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var resp APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestServer_Envelope(t *testing.T) {
	s := newTestServer()

	rec, resp := do(s, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "OK", resp.Message)

	rec, resp = do(s, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
	assert.Contains(t, rec.Body.String(), `no such symbol \"ZZZ\"`)
}

func TestAppError_MessagesAreLiteral(t *testing.T) {
	e := FieldError("limit", "must be under 100% of the window")
	assert.Equal(t, "must be under 100% of the window", e.Message)
	assert.Equal(t, "limit", e.Field)
	assert.Equal(t, http.StatusBadRequest, e.Status)

	nf := NotFoundErrorf("no prediction for %s", "AAPL")
	assert.Equal(t, "no prediction for AAPL", nf.Message)
	assert.Equal(t, CodeNotFound, nf.Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer()
	rec, resp := do(s, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestServer_ValidatesAndDefaults(t *testing.T) {
	s := newTestServer()

	rec, resp := do(s, http.MethodPut, "/echo", `{"name":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(10), data["limit"])

	rec, _ = do(s, http.MethodPut, "/echo", `{"limit":500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")
}

func TestServer_RateLimitAndMetrics(t *testing.T) {
	s := newTestServer(WithRateLimiter(denyAll{}))

	rec, resp := do(s, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)

	open := newTestServer()
	do(open, http.MethodGet, "/ok", "")
	rec, _ = do(open, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/ok",status="200"} 1`)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(WithCORS([]string{"https://dash.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

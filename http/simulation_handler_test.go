package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-risk/domain"
	"loan-risk/events"
	"loan-risk/repository"
	"loan-risk/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testPortfolio = domain.Portfolio{
	{LoanAmount: 1000, DefaultProbability: 1, RecoveryRate: 0.4},
	{LoanAmount: 2000, DefaultProbability: 0, RecoveryRate: 0.5},
}

func newTestRouter(portfolio domain.Portfolio, limiter *RateLimiter) *gin.Engine {
	svc := service.NewSimulationService(
		repository.NewPortfolioRepositoryMemory(portfolio),
		repository.NewRunRepositoryMemory(),
		repository.NewMemoryCache(),
		events.NopPublisher{},
		nil,
		service.Options{Simulations: 50},
	)
	r, err := NewRouter(NewSimulationHandler(svc), limiter, nil)
	if err != nil {
		panic(err)
	}
	return r
}

func do(r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRunSimulationHandler_OK(t *testing.T) {
	r := newTestRouter(testPortfolio, nil)

	w := do(r, http.MethodGet, "/run-simulation?num_simulations=5&seed=1&charts=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 5.0, body["num_simulations"])
	assert.Equal(t, 600.0, body["mean_loss"])
	assert.Equal(t, 600.0, body["var_99"])
	assert.Equal(t, 1.0, body["seed"])
	assert.NotEmpty(t, body["run_id"])
	assert.Len(t, body["losses"], 5)
	assert.Contains(t, body, "charts")
}

func TestRunSimulationHandler_Defaults(t *testing.T) {
	r := newTestRouter(testPortfolio, nil)

	w := do(r, http.MethodGet, "/run-simulation", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50.0, body["num_simulations"])
	assert.NotContains(t, body, "charts")
}

func TestRunSimulationHandler_BadRequest(t *testing.T) {
	r := newTestRouter(testPortfolio, nil)

	for _, target := range []string{
		"/run-simulation?num_simulations=abc",
		"/run-simulation?num_simulations=0",
		"/run-simulation?num_simulations=-5",
		"/run-simulation?seed=-1",
		"/run-simulation?charts=maybe",
		"/run-simulation?workers=1000",
	} {
		w := do(r, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), "error", target)
	}
}

func TestRunSimulationHandler_NoData(t *testing.T) {
	r := newTestRouter(nil, nil)

	w := do(r, http.MethodGet, "/run-simulation", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateSimulationHandler(t *testing.T) {
	r := newTestRouter(nil, nil)

	body := []byte(`{
		"loans": [{"loan_amount": 1000, "default_probability": 1, "recovery_rate": 0.4}],
		"num_simulations": 5,
		"seed": 42
	}`)
	w := do(r, http.MethodPost, "/simulations", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var run domain.SimulationRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, uint64(42), run.Seed)
	assert.True(t, run.Seeded)
	assert.Equal(t, 600.0, run.Summary.MaxLoss)

	w = do(r, http.MethodGet, "/simulations/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored domain.SimulationRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, run.ID, stored.ID)
	assert.Len(t, stored.Summary.Losses, 5)
}

func TestCreateSimulationHandler_Errors(t *testing.T) {
	r := newTestRouter(nil, nil)

	w := do(r, http.MethodPost, "/simulations", []byte(`{"loans": [`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/simulations",
		[]byte(`{"loans": [{"loan_amount": 1000, "default_probability": 1.5, "recovery_rate": 0.4}]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "default_probability")

	w = do(r, http.MethodPost, "/simulations",
		[]byte(`{"loans": [{"loan_amount": 1000, "default_probability": 1, "recovery_rate": 0.4}], "num_simulations": 0}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "num_simulations must be positive")

	req := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateSimulationHandler_Overflow(t *testing.T) {
	r := newTestRouter(nil, nil)

	w := do(r, http.MethodPost, "/simulations", []byte(`{
		"loans": [
			{"loan_amount": 1e308, "default_probability": 1, "recovery_rate": 0},
			{"loan_amount": 1e308, "default_probability": 1, "recovery_rate": 0}
		],
		"num_simulations": 5,
		"seed": 1
	}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "overflows")

	w = do(r, http.MethodPost, "/simulations", []byte(`{
		"loans": [{"loan_amount": 1e308, "default_probability": 0.5, "recovery_rate": 0}],
		"num_simulations": 5
	}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the listing stays readable
	w = do(r, http.MethodGet, "/simulations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Runs []domain.SimulationRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Runs)
}

func TestListAndGetSimulations(t *testing.T) {
	r := newTestRouter(testPortfolio, nil)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/run-simulation?num_simulations=3", nil).Code)
	}

	w := do(r, http.MethodGet, "/simulations?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Runs []domain.SimulationRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Nil(t, body.Runs[0].Summary.Losses)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/simulations?limit=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/simulations/unknown", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(testPortfolio, nil)

	w := do(r, http.MethodGet, "/sys/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())

	do(r, http.MethodGet, "/run-simulation?num_simulations=3", nil)
	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "loan_risk_simulation_runs_total")
}

func TestRouter_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	defer limiter.Stop()
	r := newTestRouter(testPortfolio, limiter)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/run-simulation?num_simulations=1", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/run-simulation?num_simulations=1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/run-simulation?num_simulations=1", nil).Code)

	// health is never limited
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/sys/health", nil).Code)
}

func forwardedRequest(r http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/run-simulation?num_simulations=1", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRouter_RateLimitIgnoresForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	r := newTestRouter(testPortfolio, limiter)

	assert.Equal(t, http.StatusOK, forwardedRequest(r, "203.0.113.1"))
	for _, ip := range []string{"203.0.113.2", "203.0.113.3", "203.0.113.4"} {
		assert.Equal(t, http.StatusTooManyRequests, forwardedRequest(r, ip), ip)
	}
}

func TestRouter_TrustedProxyForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	svc := service.NewSimulationService(
		repository.NewPortfolioRepositoryMemory(testPortfolio),
		repository.NewRunRepositoryMemory(),
		repository.NewMemoryCache(),
		events.NopPublisher{},
		nil,
		service.Options{Simulations: 50},
	)
	r, err := NewRouter(NewSimulationHandler(svc), limiter, []string{"192.0.2.1"})
	require.NoError(t, err)

	// behind a trusted proxy every forwarded client has its own bucket
	assert.Equal(t, http.StatusOK, forwardedRequest(r, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, forwardedRequest(r, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, forwardedRequest(r, "203.0.113.1"))

	_, err = NewRouter(NewSimulationHandler(svc), nil, []string{"not-an-ip"})
	assert.Error(t, err)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nthprime/internal/detector"
	"nthprime/internal/domain"
	"nthprime/internal/metrics"
	"nthprime/internal/search"
	"nthprime/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockService implements domain.PrimeService for testing.
type mockService struct {
	nthFunc func(ctx context.Context, n *big.Int) (*big.Int, error)
}

func (m *mockService) NthPrime(ctx context.Context, n *big.Int) (*big.Int, error) {
	if m.nthFunc != nil {
		return m.nthFunc(ctx, n)
	}
	return big.NewInt(2), nil
}

func (m *mockService) IsPrime(_ context.Context, k *big.Int) (domain.Classification, error) {
	return domain.Classification{K: k, Prime: true, Exact: true}, nil
}

func (m *mockService) Bounds(n *big.Int) (domain.Window, error) {
	return domain.Window{N: n, Lower: big.NewInt(1), Upper: big.NewInt(3), Rosser: big.NewInt(3)}, nil
}

func (m *mockService) Batch(context.Context, []*big.Int) ([]domain.BatchResult, error) {
	return nil, nil
}

func newRealServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := service.NewPrimeService(detector.DefaultPolicy(), service.DefaultSettings(), nil, metrics.NewPrometheus(reg))
	require.NoError(t, err)
	cfg.Gatherer = reg
	return New(svc, cfg, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNthEndpoint(t *testing.T) {
	s := newRealServer(t, Config{MaxN: big.NewInt(100000)})

	w := get(t, s.Handler(), "/v1/nth/100")
	require.Equal(t, http.StatusOK, w.Code)
	var resp nthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, nthResponse{N: "100", Prime: "541"}, resp)
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestNthEndpointErrors(t *testing.T) {
	s := newRealServer(t, Config{MaxN: big.NewInt(1000)})
	tests := []struct {
		path   string
		status int
	}{
		{"/v1/nth/0", http.StatusBadRequest},
		{"/v1/nth/-1", http.StatusBadRequest},
		{"/v1/nth/abc", http.StatusBadRequest},
		{"/v1/nth/1001", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, s.Handler(), tt.path)
			assert.Equal(t, tt.status, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestInternalInconsistencyMapsTo500(t *testing.T) {
	svc := &mockService{nthFunc: func(_ context.Context, n *big.Int) (*big.Int, error) {
		return nil, &search.BoundExceededError{N: n, Bound: big.NewInt(3), Limit: big.NewInt(6), Candidate: big.NewInt(7)}
	}}
	w := get(t, New(svc, Config{}, nil).Handler(), "/v1/nth/1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "beyond limit")
}

func TestTimeoutMapsTo504(t *testing.T) {
	svc := &mockService{nthFunc: func(ctx context.Context, _ *big.Int) (*big.Int, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("search: %w", ctx.Err())
	}}
	w := get(t, New(svc, Config{RequestTimeout: 10 * time.Millisecond}, nil).Handler(), "/v1/nth/5")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestIsPrimeEndpoint(t *testing.T) {
	s := newRealServer(t, Config{})
	w := get(t, s.Handler(), "/v1/isprime/2305843009213693951")
	require.Equal(t, http.StatusOK, w.Code)
	var resp isPrimeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Prime)
	assert.True(t, resp.Exact)

	w = get(t, s.Handler(), "/v1/isprime/561")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Prime)
}

func TestBoundEndpoint(t *testing.T) {
	s := newRealServer(t, Config{})
	w := get(t, s.Handler(), "/v1/bound/6")
	require.Equal(t, http.StatusOK, w.Code)
	var resp boundResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "16", resp.Rosser)

	w = get(t, s.Handler(), "/v1/bound/0")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	huge := "1" + strings.Repeat("0", 307)
	w = get(t, s.Handler(), "/v1/bound/"+huge)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = get(t, s.Handler(), "/v1/nth/"+huge)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	h := New(&mockService{}, Config{RateLimit: 0.001, Burst: 2}, nil).Handler()
	assert.Equal(t, http.StatusOK, get(t, h, "/v1/nth/1").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/v1/nth/1").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/v1/nth/1").Code)
	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestRequestIDPropagates(t *testing.T) {
	h := New(&mockService{}, Config{}, nil).Handler()
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/v1/nth/1", nil)
	req.Header.Set(requestIDHeader, id)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newRealServer(t, Config{})
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/v1/nth/10").Code)

	w := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `nthprime_searches_total{outcome="ok"} 1`), body)
	assert.Contains(t, body, "nthprime_candidates_total 28")
}

package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"nthprime/internal/domain"
	"nthprime/internal/logging"
)

// Config configures the HTTP surface.
type Config struct {
	// MaxN caps n for a single request; nil means unlimited.
	MaxN *big.Int
	// RequestTimeout bounds each computation; zero means no timeout.
	RequestTimeout time.Duration
	// RateLimit is requests per second across all clients; zero disables limiting.
	RateLimit float64
	Burst     int
	// Gatherer backs /metrics; nil omits the endpoint.
	Gatherer prometheus.Gatherer
}

// Server exposes a PrimeService over HTTP.
type Server struct {
	svc     domain.PrimeService
	cfg     Config
	logger  *logging.Logger
	limiter *rate.Limiter
	engine  *gin.Engine
}

type nthResponse struct {
	N     string `json:"n"`
	Prime string `json:"prime"`
}

type isPrimeResponse struct {
	K     string `json:"k"`
	Prime bool   `json:"prime"`
	Exact bool   `json:"exact"`
}

type boundResponse struct {
	N      string `json:"n"`
	Lower  string `json:"lower"`
	Upper  string `json:"upper"`
	Rosser string `json:"rosser"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// New builds the router.
func New(svc domain.PrimeService, cfg Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Noop()
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger.WithComponent("server")}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("nthprime"), s.requestID(), s.accessLog())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	v1 := r.Group("/v1", s.rateLimit())
	v1.GET("/nth/:n", s.handleNth)
	v1.GET("/isprime/:k", s.handleIsPrime)
	v1.GET("/bound/:n", s.handleBound)
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

const requestIDHeader = "X-Request-ID"

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.abort(c, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		c.Next()
	}
}

func (s *Server) abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), RequestID: c.GetString("request_id")})
}

// parseInt reads a decimal path parameter of any length.
func parseInt(c *gin.Context, name string) (*big.Int, error) {
	raw := c.Param(name)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s=%q is not an integer", domain.ErrInvalidArgument, name, raw)
	}
	return v, nil
}

func (s *Server) computeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleNth(c *gin.Context) {
	n, err := parseInt(c, "n")
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	if s.cfg.MaxN != nil && n.Cmp(s.cfg.MaxN) > 0 {
		s.abort(c, http.StatusUnprocessableEntity, fmt.Errorf("n=%s exceeds server limit %s", n, s.cfg.MaxN))
		return
	}
	ctx, cancel := s.computeContext(c)
	defer cancel()
	p, err := s.svc.NthPrime(ctx, n)
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, nthResponse{N: n.String(), Prime: p.String()})
}

func (s *Server) handleIsPrime(c *gin.Context) {
	k, err := parseInt(c, "k")
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := s.computeContext(c)
	defer cancel()
	res, err := s.svc.IsPrime(ctx, k)
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, isPrimeResponse{K: k.String(), Prime: res.Prime, Exact: res.Exact})
}

func (s *Server) handleBound(c *gin.Context) {
	n, err := parseInt(c, "n")
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	w, err := s.svc.Bounds(n)
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, boundResponse{N: n.String(), Lower: w.Lower.String(), Upper: w.Upper.String(), Rosser: w.Rosser.String()})
}

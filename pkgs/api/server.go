package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/fingerprintapi"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/verification"
)

// Verifier runs one verification.
type Verifier interface {
	Run(ctx context.Context, input submissions.SubmissionInput) (verification.State, error)
}

// Config holds HTTP API configuration
type Config struct {
	// RateLimit is requests per second per client; 0 disables limiting
	RateLimit      float64
	RateBurst      int
	CORSOrigins    []string
	RequestTimeout time.Duration
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// APIServer serves the verification API
type APIServer struct {
	verifier    Verifier
	fingerprint http.Handler
	limiter     *RateLimiter
	cfg         Config
}

// NewAPIServer creates a new API server
func NewAPIServer(verifier Verifier, calc *crypto.Calculator, cfg Config) *APIServer {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &APIServer{
		verifier:    verifier,
		fingerprint: fingerprintapi.NewHandler(calc),
		cfg:         cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return s
}

// Router creates the HTTP router with all endpoints
func (s *APIServer) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)

	r.Handle(fingerprintapi.Path, s.fingerprint).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	return r
}

// Handler wraps the router with CORS and panic recovery handling, and with
// proxy header handling when the server sits behind a trusted proxy.
func (s *APIServer) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	var h http.Handler = c.Handler(s.Router())
	if s.cfg.TrustProxyHeaders {
		h = handlers.ProxyHeaders(h)
	}

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(h)
}

func (s *APIServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

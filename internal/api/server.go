// Package api implements the JSON HTTP API: theory Q&A, mind maps,
// quizzes, flashcards with spaced-repetition review, gap analysis, and
// document management.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Engine      StudyEngine   // Required
	Cards       CardStore     // Required
	Documents   DocumentStore // Required
	Pool        *pgxpool.Pool // Optional: nil degrades /ready to a liveness check
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("study engine is required")
	}
	if cfg.Cards == nil {
		return nil, errors.New("card store is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &studyHandler{engine: cfg.Engine, logger: logger}
	fh := &flashcardHandler{engine: cfg.Engine, cards: cfg.Cards, logger: logger}
	dh := &documentHandler{store: cfg.Documents, logger: logger}

	mux := http.NewServeMux()

	// Study features
	mux.HandleFunc("POST /api/v1/query", sh.theory)
	mux.HandleFunc("POST /api/v1/mindmap", sh.mindMap)
	mux.HandleFunc("POST /api/v1/quiz", sh.quiz)
	mux.HandleFunc("POST /api/v1/gap-analysis", sh.gapAnalysis)

	// Flashcards
	mux.HandleFunc("POST /api/v1/flashcards/generate", fh.generate)
	mux.HandleFunc("GET /api/v1/flashcards", fh.list)
	mux.HandleFunc("GET /api/v1/flashcards/due", fh.due)
	mux.HandleFunc("PUT /api/v1/flashcards/review", fh.review)

	// Documents
	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("DELETE /api/v1/documents/{source}", dh.delete)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request IDs land in log output.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS
	// headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack so
	// they are never rate limited.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

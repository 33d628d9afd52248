// Package server exposes the pipeline over an HTTP JSON API. Identity is the
// X-User-ID header; the pipeline only needs an owner id, authentication
// lives in front of it.
package server

import (
	"net/http"

	"github.com/shopspring/decimal"

	"spendsense/pipeline/internal/correction"
	"spendsense/pipeline/internal/enrich"
	"spendsense/pipeline/internal/ingest"
	"spendsense/pipeline/internal/insights"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/parser"
	"spendsense/pipeline/internal/resolve"
)

func init() {
	// Amounts serialize as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Deps are the pipeline stages the server fronts.
type Deps struct {
	Ingestor    *ingest.Ingestor
	Parser      *parser.Parser
	Enricher    *enrich.Enricher
	Resolver    *resolve.Resolver
	Insights    *insights.Engine
	Corrections *correction.Service
}

// Server is the HTTP front of the pipeline.
type Server struct {
	deps           Deps
	logger         logging.Logger
	uploadMaxBytes int64
}

// New creates a Server. uploadMaxBytes <= 0 defaults to 16 MiB.
func New(deps Deps, logger logging.Logger, uploadMaxBytes int64) *Server {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 16 << 20
	}
	return &Server{deps: deps, logger: logger, uploadMaxBytes: uploadMaxBytes}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /spendsense/upload", s.requireUser(s.handleUpload))
	mux.HandleFunc("GET /spendsense/transactions", s.requireUser(s.handleTransactions))
	mux.HandleFunc("GET /spendsense/kpis", s.requireUser(s.handleKPIs))
	mux.HandleFunc("GET /spendsense/insights", s.requireUser(s.handleInsights))
	mux.HandleFunc("GET /spendsense/available-months", s.requireUser(s.handleAvailableMonths))
	mux.HandleFunc("POST /spendsense/transactions/{id}/category", s.requireUser(s.handleCorrection))
	mux.HandleFunc("GET /spendsense/batches/{id}", s.requireUser(s.handleBatchStatus))
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "missing X-User-ID header")
			return
		}
		next(w, r, userID)
	}
}

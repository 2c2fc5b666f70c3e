// Package api provides the HTTP server for budgetpool.
// It exposes a JSON REST API for the admin dashboard and sub-admin UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/budgetpool/budgetpool/internal/domain"
	"github.com/budgetpool/budgetpool/internal/ledger"
)

// ActivityReader lists recent audit trail records, newest first.
type ActivityReader interface {
	RecentActivity(ctx context.Context, limit int) ([]domain.ActivityLogEntry, error)
}

// Catalog manages the predefined purchasable items.
type Catalog interface {
	UpsertCatalogItem(ctx context.Context, item domain.CatalogItem) error
	ListCatalogItems(ctx context.Context) ([]domain.CatalogItem, error)
	DeleteCatalogItem(ctx context.Context, id string) error
}

// Server is the budgetpool HTTP API server.
type Server struct {
	engine         *ledger.Engine
	activity       ActivityReader // nil when the backend keeps no audit trail
	catalog        Catalog        // nil when the backend keeps no item catalog
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(engine *ledger.Engine) *Server {
	return &Server{engine: engine}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetActivityReader sets the audit trail reader backing GET /api/logs.
func (s *Server) SetActivityReader(a ActivityReader) { s.activity = a }

// SetCatalog sets the item catalog backing the /api/items routes.
func (s *Server) SetCatalog(c Catalog) { s.catalog = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	// Health check for deployment platforms
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/pool", s.handlePoolBudget)
		r.Post("/pool/additions", s.handleAddPoolFunds)

		r.Get("/accounts", s.handleListAccounts)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/balance", s.handleBalance)
			r.Get("/history", s.handleHistory)
			r.Post("/allocations", s.handleAllocate)
			r.Post("/reversals", s.handleReverse)
			r.Post("/purchases", s.handlePurchase)
			r.Post("/returns", s.handleReturn)
		})

		if s.activity != nil {
			r.Get("/logs", s.handleActivityLog)
		}

		if s.catalog != nil {
			r.Get("/items", s.handleListItems)
			r.Post("/items", s.handleUpsertItem)
			r.Delete("/items/{itemID}", s.handleDeleteItem)
		}
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Actor resolution ───────────────────────────────────────────────────────

// actorFromRequest reads the caller identity set by the authenticating
// frontend. The ledger trusts these headers; authentication happens upstream.
func actorFromRequest(r *http.Request) (domain.Actor, error) {
	id := r.Header.Get("X-Actor-ID")
	if id == "" {
		return domain.Actor{}, errors.New("missing X-Actor-ID header")
	}
	role := domain.Role(r.Header.Get("X-Actor-Role"))
	switch role {
	case domain.RoleAdmin, domain.RoleSubAdmin, domain.RoleSystem:
	case "":
		role = domain.RoleSubAdmin
	default:
		return domain.Actor{}, errors.New("unknown X-Actor-Role")
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// ─── Response helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeLedgerError maps a ledger error to an HTTP status and a stable kind
// tag the frontend can branch on.
func writeLedgerError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"type":    kind,
		},
	})
}

// classify folds the ledger error taxonomy into (kind, HTTP status).
// Validation failures are 400, missing resources 404, invariant rejections
// 422, and contention that outlived its retries 409.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart", http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidLineItem):
		return "invalid_line_item", http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrAllocationNotFound):
		return "allocation_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBudget):
		return "insufficient_budget", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientPoolFunds):
		return "insufficient_pool_funds", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrWouldUnderfundUsedBudget):
		return "would_underfund_used_budget", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExceedsReversibleAmount):
		return "exceeds_reversible_amount", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyReversed):
		return "already_reversed", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrOperationConflict):
		return "operation_conflict", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-ID, X-Actor-Role")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/budgetpool/budgetpool/internal/domain"
)

// ─── Ledger API ─────────────────────────────────────────────────────────────
// REST endpoints for the admin dashboard and sub-admin purchase UI.
//
// GET    /api/summary                          — pool-wide dashboard snapshot
// GET    /api/pool                             — pool budget projection
// POST   /api/pool/additions                   — fund the pool
// GET    /api/accounts                         — account directory
// GET    /api/accounts/{id}/balance            — balance projection
// GET    /api/accounts/{id}/history            — full entry history
// POST   /api/accounts/{id}/allocations        — grant funds
// POST   /api/accounts/{id}/reversals          — reverse an allocation
// POST   /api/accounts/{id}/purchases          — record a cart purchase
// POST   /api/accounts/{id}/returns            — return unspent funds
// GET    /api/logs                             — recent activity, newest first
// GET    /api/items                            — item catalog
// POST   /api/items                            — create or update an item
// DELETE /api/items/{id}                       — remove an item

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type reverseRequest struct {
	AllocationID string          `json:"allocation_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type purchaseRequest struct {
	Items []domain.LineItem `json:"items"`
}

// handleAllocate grants funds from the pool to an account.
// POST /api/accounts/{accountID}/allocations
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	entry, err := s.engine.Allocate(r.Context(), chi.URLParam(r, "accountID"), req.Amount, actor, req.Note)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleReverse cancels part or all of a prior allocation.
// POST /api/accounts/{accountID}/reversals
func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req reverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.AllocationID == "" {
		writeError(w, http.StatusBadRequest, "allocation_id is required")
		return
	}

	entry, err := s.engine.Reverse(r.Context(), chi.URLParam(r, "accountID"), req.AllocationID, req.Amount, actor)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handlePurchase records a cart purchase against an account's budget.
// POST /api/accounts/{accountID}/purchases
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	entry, err := s.engine.RecordPurchase(r.Context(), chi.URLParam(r, "accountID"), req.Items, actor)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleReturn gives unspent allocation back to the pool.
// POST /api/accounts/{accountID}/returns
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	entry, err := s.engine.ReturnFunds(r.Context(), chi.URLParam(r, "accountID"), req.Amount, actor, req.Note)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleBalance returns the balance projection for one account.
// GET /api/accounts/{accountID}/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.engine.GetBalance(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// handleHistory returns an account's entries in append order.
// GET /api/accounts/{accountID}/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.History(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": chi.URLParam(r, "accountID"),
		"entries":    history,
	})
}

// handleListAccounts returns every account with at least one ledger entry.
// GET /api/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.engine.Accounts(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if accounts == nil {
		accounts = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}

// handlePoolBudget returns the pool projection.
// GET /api/pool
func (s *Server) handlePoolBudget(w http.ResponseWriter, r *http.Request) {
	pool, err := s.engine.PoolBudget(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// handleAddPoolFunds records an admin funding the pool.
// POST /api/pool/additions
func (s *Server) handleAddPoolFunds(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can fund the pool")
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	add, err := s.engine.AddPoolFunds(r.Context(), req.Amount, actor, req.Note)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, add)
}

// handleSummary returns the admin dashboard aggregate.
// GET /api/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.Summary(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleActivityLog returns recent audit records, newest first.
// GET /api/logs?limit=N
func (s *Server) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := s.activity.RecentActivity(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []domain.ActivityLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}

// ─── Item catalog ───────────────────────────────────────────────────────────

type itemRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// handleListItems returns the item catalog sorted by name.
// GET /api/items
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.ListCatalogItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []domain.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
	})
}

// handleUpsertItem creates or updates a predefined item. Admin only.
// POST /api/items
func (s *Server) handleUpsertItem(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can edit the item catalog")
		return
	}
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	item := domain.CatalogItem{ID: req.ID, Name: req.Name, Price: req.Price}
	if err := s.catalog.UpsertCatalogItem(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleDeleteItem removes a predefined item. Admin only.
// DELETE /api/items/{itemID}
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can edit the item catalog")
		return
	}

	if err := s.catalog.DeleteCatalogItem(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

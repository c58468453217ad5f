package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/cache"
	"github.com/sbj175/trade-journal/internal/crypto"
	"github.com/sbj175/trade-journal/internal/database"
	"github.com/sbj175/trade-journal/internal/kafka"
	"github.com/sbj175/trade-journal/internal/models"
	"github.com/sbj175/trade-journal/internal/pipeline"
	"github.com/sbj175/trade-journal/internal/reconcile"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db          *database.DB
	chains      *cache.ChainCache
	producer    *kafka.Producer
	multiTenant bool
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, chains *cache.ChainCache, producer *kafka.Producer, multiTenant bool) *Handler {
	return &Handler{
		db:          db,
		chains:      chains,
		producer:    producer,
		multiTenant: multiTenant,
	}
}

// userID resolves the tenant for a request: the X-User-ID header when
// multi-tenant auth is on, the default user otherwise.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.multiTenant {
		return models.DefaultUserID, true
	}
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLedgerGroups handles GET /ledger/groups
func (h *Handler) GetLedgerGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	groups, err := h.db.GetGroups(userID, r.URL.Query().Get("account"), r.URL.Query().Get("underlying"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, groups)
}

// lotDetail is one lot with its closings and derived cost basis figures.
type lotDetail struct {
	*models.Lot
	Closings    []*models.LotClosing `json:"closings"`
	CostBasis   decimal.Decimal      `json:"cost_basis"`
	RealizedPnl decimal.Decimal      `json:"realized_pnl"`
}

type groupDetail struct {
	*models.PositionGroup
	Lots        []lotDetail     `json:"lots"`
	RealizedPnl decimal.Decimal `json:"realized_pnl"`
}

// GetLedgerGroup handles GET /ledger/groups/{groupID}: the group, its lots,
// per-lot closings, cost basis, and realized P&L.
func (h *Handler) GetLedgerGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	groupID := mux.Vars(r)["groupID"]

	group, err := h.db.GetGroup(userID, groupID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	lots, err := h.db.GetLotsForGroup(userID, groupID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	lotIDs := make([]int64, len(lots))
	for i, lot := range lots {
		lotIDs[i] = lot.ID
	}
	closings, err := h.db.GetClosingsForLots(userID, lotIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	detail := groupDetail{PositionGroup: group, RealizedPnl: decimal.Zero}
	for _, lot := range lots {
		ld := lotDetail{
			Lot:       lot,
			Closings:  closings[lot.ID],
			CostBasis: lot.EntryPrice.Mul(decimal.NewFromInt(lot.OriginalQuantity)).Mul(lot.Multiplier()),
		}
		ld.RealizedPnl = decimal.Zero
		for _, c := range ld.Closings {
			ld.RealizedPnl = ld.RealizedPnl.Add(c.RealizedPnl)
		}
		detail.RealizedPnl = detail.RealizedPnl.Add(ld.RealizedPnl)
		detail.Lots = append(detail.Lots, ld)
	}

	respondJSON(w, http.StatusOK, detail)
}

// CreateGroup handles POST /ledger/groups
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		AccountNumber string `json:"account_number"`
		Underlying    string `json:"underlying"`
		StrategyLabel string `json:"strategy_label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountNumber == "" || req.Underlying == "" {
		http.Error(w, "account_number and underlying are required", http.StatusBadRequest)
		return
	}

	group := &models.PositionGroup{
		AccountNumber: req.AccountNumber,
		Underlying:    req.Underlying,
		StrategyLabel: req.StrategyLabel,
	}
	if err := h.db.CreateGroup(userID, group); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, group)
}

// DeleteGroup handles DELETE /ledger/groups/{groupID}; only empty groups
// may be deleted.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteGroup(userID, mux.Vars(r)["groupID"]); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateGroupLabel handles PUT /ledger/groups/{groupID}/label
func (h *Handler) UpdateGroupLabel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		StrategyLabel string `json:"strategy_label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.StrategyLabel == "" {
		http.Error(w, "strategy_label is required", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateGroupStrategyLabel(userID, mux.Vars(r)["groupID"], req.StrategyLabel); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveLots handles POST /ledger/groups/{groupID}/lots: moves lots by
// transaction id into the group. Source and target must share account and
// underlying.
func (h *Handler) MoveLots(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		TransactionIDs []string `json:"transaction_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.TransactionIDs) == 0 {
		http.Error(w, "transaction_ids is required", http.StatusBadRequest)
		return
	}

	err := h.db.WithinTx(func(tx *database.DB) error {
		return tx.MoveLotsToGroup(userID, mux.Vars(r)["groupID"], req.TransactionIDs)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetChains handles GET /chains, read-through via the Redis cache.
func (h *Handler) GetChains(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	account := r.URL.Query().Get("account")
	underlying := r.URL.Query().Get("underlying")

	if summaries, ok := h.chains.GetChains(r.Context(), userID, account, underlying); ok {
		respondJSON(w, http.StatusOK, summaries)
		return
	}

	summaries, err := h.db.GetChainSummaries(userID, account, underlying)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.chains.SetChains(r.Context(), userID, account, underlying, summaries)

	respondJSON(w, http.StatusOK, summaries)
}

// GetChainPositions handles GET /chains/{chainID}/positions
func (h *Handler) GetChainPositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	positions, err := h.db.GetChainPositions(userID, mux.Vars(r)["chainID"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if positions == nil {
		http.Error(w, "chain not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// SyncTransactions handles POST /sync: ingests a raw transaction batch and
// reprocesses the user's ledger.
func (h *Handler) SyncTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Transactions        []models.RawTransaction `json:"transactions"`
		AffectedUnderlyings []string                `json:"affected_underlyings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.db.SaveRawTransactions(userID, req.Transactions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := pipeline.ReprocessFromStore(h.db, userID, req.AffectedUnderlyings)
	if err != nil {
		if h.producer != nil {
			if pubErr := h.producer.PublishPipelineFailed(r.Context(), userID, err); pubErr != nil {
				log.Printf("Failed to publish pipeline failure: %v", pubErr)
			}
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.chains.Invalidate(r.Context(), userID)

	if h.producer != nil {
		event := models.LedgerEvent{
			UserID:           userID,
			OrdersAssembled:  result.OrdersAssembled,
			LotsCreated:      result.LotsCreated,
			ChainsDerived:    result.ChainsDerived,
			GroupsSeeded:     result.GroupsSeeded,
			EquityLotsNetted: result.EquityLotsNetted,
		}
		if err := h.producer.PublishPipelineCompleted(r.Context(), event); err != nil {
			log.Printf("Failed to publish pipeline completion: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"transactions_saved": saved,
		"result":             result,
	})
}

// GetReconciliation handles GET /reconciliation: broker snapshot vs open
// lots, auto-closing stale lots.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	summary, err := reconcile.Run(h.db, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// ReplacePositions handles PUT /positions/{account}: stores the broker's
// live positions snapshot for reconciliation.
func (h *Handler) ReplacePositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var positions []models.BrokerPosition
	if err := json.NewDecoder(r.Body).Decode(&positions); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.db.WithinTx(func(tx *database.DB) error {
		return tx.ReplaceBrokerPositions(userID, mux.Vars(r)["account"], positions)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveCredential handles PUT /credentials/{provider}: encrypts and stores a
// broker secret.
func (h *Handler) SaveCredential(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Secret == "" {
		http.Error(w, "secret is required", http.StatusBadRequest)
		return
	}

	encrypted, err := crypto.Encrypt(req.Secret)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.db.UpsertCredential(userID, mux.Vars(r)["provider"], encrypted); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

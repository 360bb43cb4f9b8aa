package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"crypto-ledger-go/internal/importer"
	"crypto-ledger-go/internal/ledger"
	"crypto-ledger-go/internal/models"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log      *zap.Logger
	store    *ledger.Store
	importer *importer.Importer
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store *ledger.Store, imp *importer.Importer) *APIHandler {
	return &APIHandler{log: log, store: store, importer: imp}
}

// ListTransactionsHandler returns all recorded transactions in insertion order.
func (h *APIHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.store.List()
	if err != nil {
		h.log.Error("Failed to list transactions", zap.Error(err))
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// CreateTransactionHandler reconciles and persists a new transaction draft.
func (h *APIHandler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	created, err := h.store.Create(reconcileDraft(draft))
	if err != nil {
		h.writeStoreError(w, err, "Failed to create transaction")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateTransactionHandler replaces all fields of an existing transaction.
func (h *APIHandler) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	updated, err := h.store.Update(id, reconcileDraft(draft))
	if err != nil {
		h.writeStoreError(w, err, "Failed to update transaction")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTransactionHandler removes a transaction by id.
func (h *APIHandler) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(id); err != nil {
		h.writeStoreError(w, err, "Failed to delete transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted successfully"})
}

// BalancesHandler recomputes and returns the per-currency balance snapshot.
func (h *APIHandler) BalancesHandler(w http.ResponseWriter, r *http.Request) {
	balances, err := h.store.Balances()
	if err != nil {
		h.log.Error("Failed to compute balances", zap.Error(err))
		http.Error(w, "Failed to compute balances", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// ImportCSVHandler runs a best-effort CSV import and reports the aggregate
// result, including per-row errors, with a 200 even on partial failure.
func (h *APIHandler) ImportCSVHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing CSV file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		http.Error(w, "Only CSV files are allowed", http.StatusBadRequest)
		return
	}

	result, err := h.importer.Import(r.Context(), file)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.Error("CSV import failed", zap.String("filename", header.Filename), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportCSVHandler streams all transactions as a re-importable CSV file.
func (h *APIHandler) ExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.store.List()
	if err != nil {
		h.log.Error("Failed to list transactions for export", zap.Error(err))
		http.Error(w, "Failed to export transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := importer.Export(w, transactions); err != nil {
		h.log.Error("Failed to write CSV export", zap.Error(err))
	}
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeDraft reads a transaction draft from the request body.
func (h *APIHandler) decodeDraft(w http.ResponseWriter, r *http.Request) (models.Transaction, bool) {
	var draft models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return models.Transaction{}, false
	}
	return draft, true
}

// writeStoreError maps ledger errors to HTTP status codes.
func (h *APIHandler) writeStoreError(w http.ResponseWriter, err error, logMsg string) {
	var validationErr *ledger.ValidationError
	var notFoundErr *ledger.NotFoundError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		http.Error(w, notFoundErr.Error(), http.StatusNotFound)
	default:
		h.log.Error(logMsg, zap.Error(err))
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
}

// reconcileDraft derives the missing one of price/total before the draft
// reaches the store. An explicit total with no price derives the price;
// otherwise the total is derived from the price.
func reconcileDraft(draft models.Transaction) models.Transaction {
	if draft.Total != 0 && draft.Price == 0 {
		return ledger.Reconcile(draft, ledger.FieldTotal)
	}
	return ledger.Reconcile(draft, ledger.FieldPrice)
}

func parseID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "Invalid transaction id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txstats/internal/adapter/http/dto"
	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/usecase"
)

// TransactionService defines the behavior needed by TransactionHandler.
type TransactionService interface {
	CreateTransaction(ctx context.Context, input usecase.CreateTransactionInput) (string, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	DeleteAllTransactions(ctx context.Context) error
}

// TransactionHandler handles transaction-related HTTP requests.
type TransactionHandler struct {
	transactionUC TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionUC TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionUC: transactionUC}
}

// Create ingests a transaction and reports the recompute task it queued.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	taskID, err := h.transactionUC.CreateTransaction(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionCreatedResponse{
		Message: "Transaction received",
		TaskID:  taskID,
	})
}

// Get retrieves a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	record, err := h.transactionUC.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(record))
}

// DeleteAll removes every stored transaction.
func (h *TransactionHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.transactionUC.DeleteAllTransactions(r.Context()); err != nil {
		writeError(w, mapDomainError(err), "failed to delete transactions", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
	"github.com/gridmesh/microgrid/internal/repos/transactions"
	"github.com/gridmesh/microgrid/internal/services/simulation"
	"github.com/gridmesh/microgrid/internal/services/transfer"
)

// HandlerProvider wraps the simulation facade and exposes HTTP handlers.
type HandlerProvider struct {
	sim *simulation.Simulation
}

// NewHandler returns a new handler provider.
func NewHandler(sim *simulation.Simulation) *HandlerProvider {
	return &HandlerProvider{sim: sim}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)

		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a size-capped JSON body, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

// writeTransferError maps transfer/domain errors to HTTP status codes.
func writeTransferError(w http.ResponseWriter, err error) {
	var nf *transfer.NotFoundError

	switch {
	case errors.Is(err, transfer.ErrInvalidAmount),
		errors.Is(err, transfer.ErrSelfTransfer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, accounts.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, transfer.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transactions.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, "duplicate transaction")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Handlers ---

type createUserRequest struct {
	Name           string  `json:"name"`
	InitialEnergy  float64 `json:"initial_energy"`
	InitialCredits float64 `json:"initial_credits"`
}

// CreateUserHandler handles POST /users
func (h *HandlerProvider) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	user, err := h.sim.CreateUser(r.Context(), req.Name, req.InitialEnergy, req.InitialCredits)
	if err != nil {
		if errors.Is(err, simulation.ErrUserCreationFailed) {
			writeError(w, http.StatusInternalServerError, "user creation failed")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// ListUsersHandler handles GET /users
func (h *HandlerProvider) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.sim.GetAllUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// ClearUsersHandler handles DELETE /users. The grid account survives.
func (h *HandlerProvider) ClearUsersHandler(w http.ResponseWriter, r *http.Request) {
	err := h.sim.ClearAllUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetBalanceHandler handles GET /users/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId in path")
		return
	}

	user, err := h.sim.GetUserBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListUserTransactionsHandler handles GET /users/{userId}/transactions
func (h *HandlerProvider) ListUserTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId in path")
		return
	}

	txs, err := h.sim.GetUserTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, txs)
}

type transferRequest struct {
	SenderID   string  `json:"sender_id"`
	ReceiverID string  `json:"receiver_id"`
	Amount     float64 `json:"amount"`
}

// TransferHandler handles POST /transfers
func (h *HandlerProvider) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.sim.RequestEnergyTransfer(r.Context(), req.SenderID, req.ReceiverID, req.Amount)
	if err != nil {
		writeTransferError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactionsHandler handles GET /transactions
func (h *HandlerProvider) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.sim.GetAllTransactions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, txs)
}

type simulateRequest struct {
	Count int `json:"count"`
}

// SimulateHandler handles POST /simulations
func (h *HandlerProvider) SimulateHandler(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Count <= 0 {
		writeError(w, http.StatusBadRequest, "count must be positive")
		return
	}

	txs, err := h.sim.SimulateRandomTransfers(r.Context(), req.Count)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if txs == nil {
		txs = []transactions.Transaction{}
	}

	writeJSON(w, http.StatusOK, txs)
}

// StatisticsHandler handles GET /statistics
func (h *HandlerProvider) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sim.GetSummaryStatistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

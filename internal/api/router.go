package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridmesh/microgrid/internal/services/simulation"
)

// NewRouter constructs the handler with all facade endpoints registered.
func NewRouter(sim *simulation.Simulation) http.Handler {
	h := NewHandler(sim)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/users", h.CreateUserHandler)
	r.Get("/users", h.ListUsersHandler)
	r.Delete("/users", h.ClearUsersHandler)
	r.Get("/users/{userId}/balance", h.GetBalanceHandler)
	r.Get("/users/{userId}/transactions", h.ListUserTransactionsHandler)

	r.Post("/transfers", h.TransferHandler)
	r.Get("/transactions", h.ListTransactionsHandler)

	r.Post("/simulations", h.SimulateHandler)
	r.Get("/statistics", h.StatisticsHandler)

	return r
}

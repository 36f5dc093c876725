package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gridmesh/microgrid/internal/services/simulation"
)

// NewServer creates and returns a configured *http.Server for the microgrid API.
func NewServer(port uint16, sim *simulation.Simulation) *http.Server {
	mux := NewRouter(sim)

	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

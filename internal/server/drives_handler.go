package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nithronos/nosdu/internal/httpx"
)

type DrivesHandler struct {
	topo *Topology
}

func NewDrivesHandler(t *Topology) *DrivesHandler {
	return &DrivesHandler{topo: t}
}

func (h *DrivesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/refresh", h.Refresh)
	return r
}

// List returns the latest snapshot without resolving.
// GET /api/v1/drives
func (h *DrivesHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.topo.Snapshot())
}

// Refresh resolves the topology now.
// POST /api/v1/drives/refresh
func (h *DrivesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.topo.Refresh(r.Context())
	if err != nil {
		httpx.WriteTypedError(w, http.StatusServiceUnavailable, "topology_unavailable", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

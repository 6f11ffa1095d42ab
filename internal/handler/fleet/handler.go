package fleet

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	fleetModel "github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/pkg/utils"
)

// Handler exposes the knowledge domain registry.
type Handler struct {
	registry fleetModel.Registry
}

// New creates the fleet handler.
func New(registry fleetModel.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes wires the fleet routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/fleet", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.registry.List())
}

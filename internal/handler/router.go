package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/flightdeck/aerochat/internal/handler/chat"
	fleetHandler "github.com/flightdeck/aerochat/internal/handler/fleet"
	voiceHandler "github.com/flightdeck/aerochat/internal/handler/voice"
	middlewarePkg "github.com/flightdeck/aerochat/internal/middleware"
	fleetModel "github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/internal/service/session"
	voiceService "github.com/flightdeck/aerochat/internal/service/voice"
	"github.com/flightdeck/aerochat/pkg/utils"
)

// NewRouter wires HTTP routes to core services. voiceAdapter may be nil when
// the voice gateway is not configured; the voice routes are then absent.
func NewRouter(registry fleetModel.Registry, sessions *session.Manager, voiceAdapter *voiceService.Adapter, answerEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status": "ok",
				"answer": answerEnabled,
				"voice":  voiceAdapter != nil,
			})
		})

		fleetHandler.New(registry).RegisterRoutes(api)
		chatHandler.New(sessions, registry).RegisterRoutes(api)

		if voiceAdapter != nil {
			voiceHandler.New(voiceAdapter, registry).RegisterRoutes(api)
		}
	})

	return r
}

package voice

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flightdeck/aerochat/internal/model/fleet"
	voiceService "github.com/flightdeck/aerochat/internal/service/voice"
	"github.com/flightdeck/aerochat/pkg/utils"
)

// Handler exposes the voice channel lifecycle over HTTP.
type Handler struct {
	adapter  *voiceService.Adapter
	registry fleet.Registry
}

// New creates the voice handler.
func New(adapter *voiceService.Adapter, registry fleet.Registry) *Handler {
	return &Handler{adapter: adapter, registry: registry}
}

// RegisterRoutes wires the voice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice/connect", h.handleConnect)
	r.Post("/voice/disconnect", h.handleDisconnect)
	r.Post("/voice/mute", h.handleMute)
	r.Get("/voice/status", h.handleStatus)
	r.Get("/voice/speaking", h.handleSpeakingStream)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := h.registry.FindByTag(payload.Domain); !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown domain")
		return
	}

	if err := h.adapter.Connect(r.Context(), payload.Domain); err != nil {
		log.Printf("[voice] connect failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "voice connection failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.status())
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	h.adapter.Disconnect()
	utils.RespondJSON(w, http.StatusOK, h.status())
}

func (h *Handler) handleMute(w http.ResponseWriter, _ *http.Request) {
	muted := h.adapter.ToggleMute()
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"muted": muted})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.status())
}

func (h *Handler) status() map[string]any {
	return map[string]any{
		"connected": h.adapter.Connected(),
		"domain":    h.adapter.Domain(),
		"speaking":  h.adapter.Speaking(),
	}
}

// handleSpeakingStream pushes assistant speaking-state changes as SSE so the
// UI can animate the talking indicator without polling.
func (h *Handler) handleSpeakingStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	updates, cancel := h.adapter.SubscribeSpeaking()
	defer cancel()

	ctx := r.Context()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	utils.SendSSEEvent(w, flusher, "speaking", map[string]bool{"speaking": h.adapter.Speaking()})

	for {
		select {
		case <-ctx.Done():
			return
		case speaking := <-updates:
			utils.SendSSEEvent(w, flusher, "speaking", map[string]bool{"speaking": speaking})
		case <-ticker.C:
			utils.SendSSEChunk(w, flusher, map[string]any{
				"event": "heartbeat",
				"time":  time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}

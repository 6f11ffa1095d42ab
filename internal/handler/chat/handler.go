package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/internal/service/answer"
	"github.com/flightdeck/aerochat/internal/service/session"
	"github.com/flightdeck/aerochat/pkg/utils"
)

// Handler exposes the per-domain session surface over HTTP.
type Handler struct {
	sessions *session.Manager
	registry fleet.Registry
}

// New creates the chat handler.
func New(sessions *session.Manager, registry fleet.Registry) *Handler {
	return &Handler{sessions: sessions, registry: registry}
}

// RegisterRoutes wires the session, conversation and message routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleSessions)
	r.Post("/sessions/active", h.handleSwitchDomain)
	r.Get("/conversations", h.handleListConversations)
	r.Post("/conversations", h.handleCreateConversation)
	r.Post("/conversations/{conversationID}/activate", h.handleSwitchConversation)
	r.Delete("/conversations/{conversationID}", h.handleDeleteConversation)
	r.Post("/messages", h.handleSendMessage)
}

func (h *Handler) handleSessions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessions":     h.sessions.Sessions(),
		"activeDomain": h.sessions.ActiveDomain(),
	})
}

func (h *Handler) handleSwitchDomain(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.validDomain(w, payload.Domain) {
		return
	}

	h.sessions.SwitchDomain(r.Context(), payload.Domain)
	utils.RespondJSON(w, http.StatusOK, h.sessions.Session(payload.Domain))
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if !h.validDomain(w, domain) {
		return
	}

	h.sessions.LoadConversations(r.Context(), domain)
	utils.RespondJSON(w, http.StatusOK, h.sessions.Session(domain).Conversations)
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title  string `json:"title"`
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.validDomain(w, payload.Domain) {
		return
	}

	title := payload.Title
	if title == "" {
		title = h.sessions.GenerateTitle(payload.Domain)
	}

	id, err := h.sessions.CreateConversation(r.Context(), title, payload.Domain)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleSwitchConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var payload struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.validDomain(w, payload.Domain) {
		return
	}

	h.sessions.SwitchConversation(r.Context(), conversationID, payload.Domain)
	utils.RespondJSON(w, http.StatusOK, h.sessions.Session(payload.Domain))
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	domain := r.URL.Query().Get("domain")
	if !h.validDomain(w, domain) {
		return
	}

	if err := h.sessions.DeleteConversation(r.Context(), conversationID, domain); err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.sessions.Session(domain))
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Domain         string `json:"domain"`
		ConversationID string `json:"conversationId"`
		Content        string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.validDomain(w, payload.Domain) {
		return
	}

	err := h.sessions.SendMessage(r.Context(), payload.Content, payload.Domain, payload.ConversationID)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, h.sessions.Session(payload.Domain))
	case errors.Is(err, session.ErrEmptyContent):
		utils.RespondError(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, answer.ErrUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, "answer service unavailable")
	default:
		var remoteErr *session.RemoteAnswerError
		if errors.As(err, &remoteErr) {
			utils.RespondError(w, http.StatusBadGateway, "answer service failed")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to send message")
	}
}

func (h *Handler) validDomain(w http.ResponseWriter, domain string) bool {
	if domain == "" {
		utils.RespondError(w, http.StatusBadRequest, "domain is required")
		return false
	}
	if _, ok := h.registry.FindByTag(domain); !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown domain")
		return false
	}
	return true
}

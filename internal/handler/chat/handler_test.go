package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flightdeck/aerochat/internal/model/chat"
	"github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/internal/service/session"
	"github.com/flightdeck/aerochat/internal/store"
)

type stubAnswer struct {
	reply string
	err   error
}

func (a *stubAnswer) Ask(context.Context, string, string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return a.reply, nil
}

func setupRouter(answers *stubAnswer) (*chi.Mux, *session.Manager) {
	registry := fleet.NewMemoryRegistry(fleet.Seed())
	sessions := session.NewManager(store.NewMemoryStore(), answers, registry)
	handler := New(sessions, registry)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, sessions
}

func TestCreateConversation(t *testing.T) {
	r, _ := setupRouter(&stubAnswer{reply: "unused"})

	payload, _ := json.Marshal(map[string]string{"title": "Trip Plan", "domain": "a320"})
	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["id"] == "" {
		t.Fatal("expected a conversation id")
	}
}

func TestCreateConversationUnknownDomain(t *testing.T) {
	r, _ := setupRouter(&stubAnswer{reply: "unused"})

	payload, _ := json.Marshal(map[string]string{"title": "x", "domain": "b747"})
	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessage(t *testing.T) {
	r, _ := setupRouter(&stubAnswer{reply: "hi there"})

	payload, _ := json.Marshal(map[string]string{"domain": "a320", "content": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var sess chat.DomainSession
	if err := json.Unmarshal(resp.Body.Bytes(), &sess); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sess.Messages))
	}
	if sess.Messages[1].Content != "hi there" {
		t.Fatalf("unexpected assistant reply: %s", sess.Messages[1].Content)
	}
	if sess.IsLoading {
		t.Fatal("session must settle after the round trip")
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	r, _ := setupRouter(&stubAnswer{reply: "unused"})

	payload, _ := json.Marshal(map[string]string{"domain": "a320", "content": "  "})
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageBackendFailure(t *testing.T) {
	r, _ := setupRouter(&stubAnswer{err: errors.New("backend exploded")})

	payload, _ := json.Marshal(map[string]string{"domain": "a330", "content": "what is MEL?"})
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestDeleteConversation(t *testing.T) {
	r, sessions := setupRouter(&stubAnswer{reply: "roger"})

	if err := sessions.SendMessage(context.Background(), "hello", "a320", ""); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	id := sessions.Session("a320").CurrentConversationID

	req := httptest.NewRequest(http.MethodDelete, "/conversations/"+id+"?domain=a320", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	sess := sessions.Session("a320")
	if sess.CurrentConversationID != "" {
		t.Fatal("expected current conversation to be cleared")
	}
	if len(sess.Messages) != 0 {
		t.Fatal("expected timeline to be emptied")
	}
}

func TestDeleteMissingConversation(t *testing.T) {
	r, _ := setupRouter(&stubAnswer{reply: "unused"})

	req := httptest.NewRequest(http.MethodDelete, "/conversations/missing?domain=a320", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSwitchDomain(t *testing.T) {
	r, sessions := setupRouter(&stubAnswer{reply: "unused"})

	payload, _ := json.Marshal(map[string]string{"domain": "a350"})
	req := httptest.NewRequest(http.MethodPost, "/sessions/active", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if sessions.ActiveDomain() != "a350" {
		t.Fatalf("expected active domain a350, got %s", sessions.ActiveDomain())
	}
}

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kandedongma/foreigner-app/backend/internal/analytics"
	"github.com/kandedongma/foreigner-app/backend/internal/crypto"
	chatservice "github.com/kandedongma/foreigner-app/backend/internal/service/chat"
	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
	"github.com/kandedongma/foreigner-app/backend/internal/storage"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	cipher, err := crypto.New("handler_test_key")
	if err != nil {
		t.Fatalf("crypto.New err: %v", err)
	}
	store := storage.NewMemoryStore()
	chatSvc := chatservice.NewService(store, cipher, analytics.NopSink{}, time.Hour)
	t.Cleanup(chatSvc.Close)
	modSvc := moderationservice.NewService(store)
	handler := New(chatSvc, modSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestStartSessionEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(t, r, "/chat/session", map[string]string{})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var body struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		RemainingMs int64  `json:"remainingMs"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID == "" || body.Status != "active" {
		t.Fatalf("unexpected session payload: %+v", body)
	}
	if body.RemainingMs <= 0 {
		t.Fatalf("expected positive remaining time, got %d", body.RemainingMs)
	}
}

func TestPostMessageAndTranscript(t *testing.T) {
	r, chatSvc := setupRouter(t)

	session, err := chatSvc.StartAnonymousSession(context.Background())
	if err != nil {
		t.Fatalf("StartAnonymousSession err: %v", err)
	}

	resp := postJSON(t, r, "/chat/sessions/"+session.ID+"/messages", map[string]string{
		"content":   "你好",
		"direction": "send",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions/"+session.ID+"/messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Messages []struct {
			Content string `json:"content"`
			IsSelf  bool   `json:"isSelf"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "你好" || !body.Messages[0].IsSelf {
		t.Fatalf("unexpected transcript: %+v", body.Messages)
	}
}

func TestPostMessageBlockedByModeration(t *testing.T) {
	r, chatSvc := setupRouter(t)

	session, err := chatSvc.StartAnonymousSession(context.Background())
	if err != nil {
		t.Fatalf("StartAnonymousSession err: %v", err)
	}

	// 三条规则命中，critical，消息应被拒收
	resp := postJSON(t, r, "/chat/sessions/"+session.ID+"/messages", map[string]string{
		"content": "这是诈骗，先付款，加我微信",
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}

	messages, err := chatSvc.GetDecryptedMessages(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetDecryptedMessages err: %v", err)
	}
	if len(messages) != 0 {
		t.Fatal("blocked message must not be stored")
	}
}

func TestPostMessageMissingSession(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(t, r, "/chat/sessions/session_missing/messages", map[string]string{
		"content": "你好",
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDeleteAllEndpoint(t *testing.T) {
	r, chatSvc := setupRouter(t)
	ctx := context.Background()

	session, err := chatSvc.StartAnonymousSession(ctx)
	if err != nil {
		t.Fatalf("StartAnonymousSession err: %v", err)
	}
	if _, err := chatSvc.SendMessage(ctx, session.ID, "你好"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/chat/sessions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	active, err := chatSvc.HasActiveSession(ctx)
	if err != nil {
		t.Fatalf("HasActiveSession err: %v", err)
	}
	if active {
		t.Fatal("expected no active session after wipe")
	}
}

func TestCurrentSessionNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/chat/session/current", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRemainingTimeEndpoint(t *testing.T) {
	r, chatSvc := setupRouter(t)

	session, err := chatSvc.StartAnonymousSession(context.Background())
	if err != nil {
		t.Fatalf("StartAnonymousSession err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions/"+session.ID+"/remaining", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["remainingMs"] <= 0 {
		t.Fatalf("expected positive remaining time, got %d", body["remainingMs"])
	}
}

func TestEndSessionEndpoint(t *testing.T) {
	r, chatSvc := setupRouter(t)

	session, err := chatSvc.StartAnonymousSession(context.Background())
	if err != nil {
		t.Fatalf("StartAnonymousSession err: %v", err)
	}

	resp := postJSON(t, r, "/chat/sessions/"+session.ID+"/end", map[string]string{})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = postJSON(t, r, "/chat/sessions/"+session.ID+"/messages", map[string]string{"content": "你好"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for ended session, got %d", resp.Code)
	}
}

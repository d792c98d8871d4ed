package moderation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
	"github.com/kandedongma/foreigner-app/backend/internal/storage"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	modSvc := moderationservice.NewService(storage.NewMemoryStore())
	handler := New(modSvc, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
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

func TestCheckEndpoint(t *testing.T) {
	r := setupRouter(t)

	resp := postJSON(t, r, "/moderation/check", map[string]string{
		"message":  "私下交易，先付款再发货",
		"senderId": "user_1",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Result struct {
			IsSafe    bool   `json:"isSafe"`
			RiskLevel string `json:"riskLevel"`
			Flags     []struct {
				Type string `json:"type"`
			} `json:"flags"`
			Suggestions []string `json:"suggestions"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Result.RiskLevel != "high" && body.Result.RiskLevel != "critical" {
		t.Fatalf("expected elevated risk, got %s", body.Result.RiskLevel)
	}
	if len(body.Result.Suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
}

func TestCheckEndpointMissingMessage(t *testing.T) {
	r := setupRouter(t)

	resp := postJSON(t, r, "/moderation/check", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	r := setupRouter(t)

	resp := postJSON(t, r, "/moderation/report", map[string]string{
		"reportedUserId": "bad_user",
		"reporterId":     "reporter",
		"reason":         "scam",
		"description":    "骗我转账",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var report struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.ID == "" || report.Status != "pending" {
		t.Fatalf("unexpected report payload: %+v", report)
	}
}

func TestReportEndpointInvalidReason(t *testing.T) {
	r := setupRouter(t)

	resp := postJSON(t, r, "/moderation/report", map[string]string{
		"reportedUserId": "bad_user",
		"reporterId":     "reporter",
		"reason":         "nonsense",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestPolicyEndpoint(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/moderation/policy", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var policy struct {
		MaxChatDuration   int  `json:"maxChatDuration"`
		AutoDeleteEnabled bool `json:"autoDeleteEnabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if policy.MaxChatDuration != 30 || !policy.AutoDeleteEnabled {
		t.Fatalf("unexpected policy: %+v", policy)
	}
}

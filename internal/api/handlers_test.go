package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modubiz/ConsultFlow/internal/flow"
	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	marketing := flow.NewMarketingEngine(st, nil)
	mental := flow.NewMentalHealthEngine(st, nil)
	t.Cleanup(func() {
		marketing.Close()
		mental.Close()
	})
	return NewServer(marketing, mental, st), st
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestMarketingQueryHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s.marketingQueryHandler, `{"user_id": "user-1", "message": "카페를 운영해요"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != "ok" {
		t.Errorf("expected ok status, got %q", resp.Status)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", resp.Result)
	}
	if result["conversation_id"] == "" {
		t.Error("expected a conversation ID in the result")
	}
	if result["answer"] == "" {
		t.Error("expected an answer in the result")
	}
}

func TestMarketingQueryHandlerValidation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing user", `{"message": "안녕하세요"}`},
		{"missing message", `{"user_id": "user-1"}`},
		{"blank message", `{"user_id": "user-1", "message": "   "}`},
		{"broken json", `{"user_id": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, s.marketingQueryHandler, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if resp := decodeResponse(t, rec); resp.Status != "error" {
				t.Errorf("expected error status, got %q", resp.Status)
			}
		})
	}
}

func TestMarketingQueryHandlerMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/marketing/query", nil)
	rec := httptest.NewRecorder()
	s.marketingQueryHandler(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestMarketingStatusHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.marketingStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/marketing/status?conversation_id=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown conversation, got %d", rec.Code)
	}

	postJSON(t, s.marketingQueryHandler, `{"user_id": "user-1", "conversation_id": "conv-1", "message": "카페를 운영해요"}`)

	rec = httptest.NewRecorder()
	s.marketingStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/marketing/status?conversation_id=conv-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if result["stage"] != string(models.StageInitial) {
		t.Errorf("expected INITIAL stage, got %v", result["stage"])
	}
}

func TestMentalResetProtection(t *testing.T) {
	s, _ := newTestServer(t)

	// Put the conversation into crisis protection, then try to reset it.
	rec := postJSON(t, s.mentalQueryHandler, `{"user_id": "user-1", "conversation_id": "conv-1", "message": "죽고 싶어요"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for crisis turn, got %d", rec.Code)
	}

	rec = postJSON(t, s.mentalResetHandler, `{"conversation_id": "conv-1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for protected conversation, got %d", rec.Code)
	}

	// A safe conversation resets normally.
	postJSON(t, s.mentalQueryHandler, `{"user_id": "user-2", "conversation_id": "conv-2", "message": "요즘 기분이 가라앉아요"}`)
	rec = postJSON(t, s.mentalResetHandler, `{"conversation_id": "conv-2"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for safe reset, got %d", rec.Code)
	}
}

func TestSurveyEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s.surveyStartHandler, `{"user_id": "user-1", "conversation_id": "conv-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if q, _ := result["question"].(string); !strings.Contains(q, "질문 1/9") {
		t.Errorf("expected first question, got %v", result["question"])
	}

	rec = postJSON(t, s.surveyStartHandler, `{"user_id": "user-1", "conversation_id": "conv-1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on double start, got %d", rec.Code)
	}

	rec = postJSON(t, s.surveyAnswerHandler, `{"user_id": "user-1", "conversation_id": "conv-1", "value": 7}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range answer, got %d", rec.Code)
	}

	for i := 0; i < models.PHQ9QuestionCount; i++ {
		rec = postJSON(t, s.surveyAnswerHandler, `{"user_id": "user-1", "conversation_id": "conv-1", "value": 2}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d", i, rec.Code)
		}
	}
	resp = decodeResponse(t, rec)
	result = resp.Result.(map[string]interface{})
	surveyResult, ok := result["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected final result payload, got %v", result)
	}
	if score := surveyResult["total_score"].(float64); score != 18 {
		t.Errorf("expected score 18, got %v", score)
	}

	rec = postJSON(t, s.surveyAnswerHandler, `{"user_id": "user-1", "conversation_id": "conv-1", "value": 1}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 after completion, got %d", rec.Code)
	}
}

func TestSurveyStatusHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.surveyStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/mental/phq9/status?conversation_id=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	postJSON(t, s.surveyStartHandler, `{"user_id": "user-1", "conversation_id": "conv-1"}`)
	rec = httptest.NewRecorder()
	s.surveyStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/mental/phq9/status?conversation_id=conv-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if active, _ := result["active"].(bool); !active {
		t.Errorf("expected active survey, got %v", result)
	}
}

func TestProjectsHandler(t *testing.T) {
	s, st := newTestServer(t)

	rec := httptest.NewRecorder()
	s.projectsHandler(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.projectsHandler(rec, httptest.NewRequest(http.MethodGet, "/projects?user_id=user-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if list, ok := resp.Result.([]interface{}); !ok || len(list) != 0 {
		t.Errorf("expected empty list, got %v", resp.Result)
	}

	// Finalizing a marketing conversation saves a project.
	postJSON(t, s.marketingQueryHandler, `{"user_id": "user-1", "conversation_id": "conv-1", "message": "카페에서 디저트 팔아요. 전략 정리해주세요"}`)

	projects, err := st.GetProjectsByUser("user-1")
	if err != nil || len(projects) != 1 {
		t.Fatalf("expected 1 project in store, got %d (err %v)", len(projects), err)
	}

	rec = httptest.NewRecorder()
	s.projectsHandler(rec, httptest.NewRequest(http.MethodGet, "/projects?user_id=user-1", nil))
	resp = decodeResponse(t, rec)
	list, ok := resp.Result.([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected 1 project in response, got %v", resp.Result)
	}
	project := list[0].(map[string]interface{})
	if title, _ := project["title"].(string); !strings.Contains(title, "마케팅 전략") {
		t.Errorf("unexpected project title %v", project["title"])
	}

	rec = httptest.NewRecorder()
	s.projectsHandler(rec, httptest.NewRequest(http.MethodGet, "/projects?user_id=user-1&category=marketing_strategy", nil))
	resp = decodeResponse(t, rec)
	if list, ok := resp.Result.([]interface{}); !ok || len(list) != 1 {
		t.Errorf("expected 1 project for matching category, got %v", resp.Result)
	}

	rec = httptest.NewRecorder()
	s.projectsHandler(rec, httptest.NewRequest(http.MethodGet, "/projects?user_id=user-1&category=business_plan", nil))
	resp = decodeResponse(t, rec)
	if list, ok := resp.Result.([]interface{}); !ok || len(list) != 0 {
		t.Errorf("expected no projects for other category, got %v", resp.Result)
	}
}

func TestStatusHandler(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.statusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	agents, ok := result["agents"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected agents map, got %v", result)
	}
	for _, agent := range []string{"marketing", "mental_health"} {
		stats, ok := agents[agent].(map[string]interface{})
		if !ok {
			t.Fatalf("expected stats object for agent %s, got %v", agent, agents[agent])
		}
		if _, ok := stats["active_conversations"]; !ok {
			t.Errorf("expected active_conversations for agent %s, got %v", agent, stats)
		}
	}
}

func TestRoutesServeOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/marketing/query", "application/json",
		bytes.NewBufferString(`{"user_id": "user-1", "message": "카페를 운영해요"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	get, err := http.Get(fmt.Sprintf("%s/status", srv.URL))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /status, got %d", get.StatusCode)
	}
}

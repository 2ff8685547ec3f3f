// Package api provides HTTP handlers for ConsultFlow endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
)

func (s *Server) marketingQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.marketingQueryHandler: processing query", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.marketingQueryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.marketingQueryHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.marketing.HandleMessage(r.Context(), req.UserID, req.ConversationID, req.Message)
	if err != nil {
		slog.Error("Server.marketingQueryHandler: engine failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	slog.Info("Server.marketingQueryHandler: turn processed", "conversationID", result.ConversationID, "stage", result.Stage)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) marketingStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation_id is required"))
		return
	}
	status, err := s.marketing.GetStatus(conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.marketingStatusHandler: status failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

func (s *Server) marketingResetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.marketing.Reset(req.ConversationID); err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.marketingResetHandler: reset failed", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset conversation"))
		return
	}
	slog.Info("Server.marketingResetHandler: conversation reset", "conversationID", req.ConversationID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation reset", nil))
}

func (s *Server) mentalQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.mentalQueryHandler: processing query", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.mentalQueryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.mentalQueryHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.mental.HandleMessage(r.Context(), req.UserID, req.ConversationID, req.Message)
	if err != nil {
		slog.Error("Server.mentalQueryHandler: engine failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	slog.Info("Server.mentalQueryHandler: turn processed", "conversationID", result.ConversationID, "stage", result.Stage, "intervention", result.CrisisIntervention)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) mentalStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation_id is required"))
		return
	}
	status, err := s.mental.GetStatus(conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.mentalStatusHandler: status failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

func (s *Server) mentalResetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.mental.Reset(req.ConversationID); err != nil {
		switch {
		case errors.Is(err, models.ErrConversationNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		case errors.Is(err, models.ErrConversationLocked):
			slog.Warn("Server.mentalResetHandler: reset refused for protected conversation", "conversationID", req.ConversationID)
			writeJSONResponse(w, http.StatusConflict, models.Error("Conversation is crisis-protected and cannot be reset"))
		default:
			slog.Error("Server.mentalResetHandler: reset failed", "error", err, "conversationID", req.ConversationID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset conversation"))
		}
		return
	}
	slog.Info("Server.mentalResetHandler: conversation reset", "conversationID", req.ConversationID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation reset", nil))
}

func (s *Server) surveyStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SurveyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	question, err := s.mental.StartSurvey(req.UserID, req.ConversationID)
	if err != nil {
		if errors.Is(err, models.ErrSurveyAlreadyActive) {
			writeJSONResponse(w, http.StatusConflict, models.Error("A survey is already in progress"))
			return
		}
		slog.Error("Server.surveyStartHandler: start failed", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start survey"))
		return
	}
	slog.Info("Server.surveyStartHandler: survey started", "conversationID", req.ConversationID)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"question": question}))
}

func (s *Server) surveyAnswerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SurveyAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	reply, result, err := s.mental.AnswerSurvey(r.Context(), req.ConversationID, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConversationNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		case errors.Is(err, models.ErrSurveyNotActive):
			writeJSONResponse(w, http.StatusConflict, models.Error("No survey is currently active"))
		case errors.Is(err, models.ErrInvalidSurveyAnswer):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("Server.surveyAnswerHandler: answer failed", "error", err, "conversationID", req.ConversationID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record answer"))
		}
		return
	}
	payload := map[string]interface{}{"reply": reply}
	if result != nil {
		payload["result"] = result
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

func (s *Server) surveyStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation_id is required"))
		return
	}
	status, err := s.mental.SurveyStatus(conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.surveyStatusHandler: status failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get survey status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

func (s *Server) projectsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	if s.store == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]models.Project{}))
		return
	}
	projects, err := s.store.GetProjectsByUser(userID)
	if err != nil {
		slog.Error("Server.projectsHandler: query failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list projects"))
		return
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := projects[:0]
		for _, p := range projects {
			if p.Category == models.ProjectCategory(category) {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(projects))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload := map[string]interface{}{
		"agents": map[string]models.EngineStats{
			string(models.AgentMarketing):    s.marketing.Stats(),
			string(models.AgentMentalHealth): s.mental.Stats(),
		},
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

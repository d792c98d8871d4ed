package moderation

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	moderationModel "github.com/kandedongma/foreigner-app/backend/internal/model/moderation"
	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
	"github.com/kandedongma/foreigner-app/backend/pkg/utils"
)

// Handler 内容审核的HTTP处理器。
type Handler struct {
	modSvc  *moderationservice.Service
	advisor *moderationservice.Advisor
}

// New 创建审核处理器。advisor 可为nil，此时只返回规则判定。
func New(modSvc *moderationservice.Service, advisor *moderationservice.Advisor) *Handler {
	return &Handler{modSvc: modSvc, advisor: advisor}
}

// RegisterRoutes 注册审核相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/moderation/check", h.handleCheck)
	r.Post("/moderation/report", h.handleReport)
	r.Get("/moderation/policy", h.handlePolicy)
}

// handleCheck 对一条消息做安全检测
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message  string `json:"message"`
		SenderID string `json:"senderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	result := h.modSvc.CheckMessage(payload.Message, payload.SenderID)

	if h.advisor.Enabled() {
		review := h.advisor.Review(r.Context(), payload.Message, result)
		utils.RespondJSON(w, http.StatusOK, review)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"result": result})
}

// handleReport 提交一条举报
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReportedUserID string `json:"reportedUserId"`
		ReporterID     string `json:"reporterId"`
		Reason         string `json:"reason"`
		Description    string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ReportedUserID == "" || payload.ReporterID == "" {
		utils.RespondError(w, http.StatusBadRequest, "reportedUserId and reporterId are required")
		return
	}

	reason := moderationModel.ReportReason(payload.Reason)
	if !moderationModel.ValidReason(reason) {
		utils.RespondError(w, http.StatusBadRequest, "invalid report reason")
		return
	}

	report, err := h.modSvc.ReportUser(r.Context(), payload.ReportedUserID, payload.ReporterID, reason, payload.Description)
	if err != nil {
		log.Printf("[moderation] report failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save report")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, report)
}

// handlePolicy 返回当前安全策略
func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.modSvc.SecurityLevel())
}

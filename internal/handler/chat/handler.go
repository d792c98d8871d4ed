package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kandedongma/foreigner-app/backend/internal/model/moderation"
	chatservice "github.com/kandedongma/foreigner-app/backend/internal/service/chat"
	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
	"github.com/kandedongma/foreigner-app/backend/pkg/utils"
)

// Handler 安全聊天的HTTP处理器。
type Handler struct {
	chatSvc *chatservice.Service
	modSvc  *moderationservice.Service
}

// New 创建聊天处理器。
func New(chatSvc *chatservice.Service, modSvc *moderationservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc, modSvc: modSvc}
}

// RegisterRoutes 注册聊天相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/session", h.handleStartSession)
	r.Get("/chat/session/current", h.handleCurrentSession)
	r.Delete("/chat/sessions", h.handleDeleteAll)
	r.Get("/chat/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/chat/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/chat/sessions/{sessionID}/messages", h.handlePostMessage)
	r.Get("/chat/sessions/{sessionID}/messages", h.handleGetMessages)
	r.Post("/chat/sessions/{sessionID}/read", h.handleMarkRead)
	r.Post("/chat/sessions/{sessionID}/end", h.handleEndSession)
	r.Get("/chat/sessions/{sessionID}/remaining", h.handleRemainingTime)
	r.Get("/chat/sessions/{sessionID}/countdown", h.handleCountdown)
}

// sessionResponse 不回传消息密文，只给UI需要的会话元信息。
type sessionResponse struct {
	ID           string `json:"id"`
	StartTime    string `json:"startTime"`
	IsAnonymous  bool   `json:"isAnonymous"`
	Status       string `json:"status"`
	MessageCount int    `json:"messageCount"`
	RemainingMs  int64  `json:"remainingMs"`
}

// handleStartSession 开启匿名会话
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.StartAnonymousSession(r.Context())
	if err != nil {
		log.Printf("[chat] start session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	remaining, err := h.chatSvc.GetRemainingTime(r.Context(), session.ID)
	if err != nil {
		remaining = 0
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{
		ID:           session.ID,
		StartTime:    session.StartTime.Format(time.RFC3339),
		IsAnonymous:  session.IsAnonymous,
		Status:       string(session.Status),
		MessageCount: 0,
		RemainingMs:  remaining.Milliseconds(),
	})
}

// handleCurrentSession 返回最近的会话
func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetCurrentSession(r.Context())
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "no active session")
		return
	}
	if err != nil {
		log.Printf("[chat] current session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	remaining, _ := h.chatSvc.GetRemainingTime(r.Context(), session.ID)
	utils.RespondJSON(w, http.StatusOK, sessionResponse{
		ID:           session.ID,
		StartTime:    session.StartTime.Format(time.RFC3339),
		IsAnonymous:  session.IsAnonymous,
		Status:       string(session.Status),
		MessageCount: len(session.Messages),
		RemainingMs:  remaining.Milliseconds(),
	})
}

// handleGetSession 按ID返回会话元信息
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("[chat] get session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	remaining, _ := h.chatSvc.GetRemainingTime(r.Context(), session.ID)
	utils.RespondJSON(w, http.StatusOK, sessionResponse{
		ID:           session.ID,
		StartTime:    session.StartTime.Format(time.RFC3339),
		IsAnonymous:  session.IsAnonymous,
		Status:       string(session.Status),
		MessageCount: len(session.Messages),
		RemainingMs:  remaining.Milliseconds(),
	})
}

// handlePostMessage 写入一条消息。发送前先过审核：critical直接拒绝，
// 其余风险随响应返回交给UI提示。
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content   string `json:"content"`
		Direction string `json:"direction"`
		SenderID  string `json:"senderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}
	if payload.Direction == "" {
		payload.Direction = "send"
	}
	if payload.Direction != "send" && payload.Direction != "receive" {
		utils.RespondError(w, http.StatusBadRequest, "direction must be send or receive")
		return
	}

	check := h.modSvc.CheckMessage(payload.Content, payload.SenderID)
	if check.RiskLevel == moderation.RiskCritical {
		utils.RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "message blocked",
			"moderation": check,
		})
		return
	}

	var (
		message any
		err     error
	)
	if payload.Direction == "send" {
		message, err = h.chatSvc.SendMessage(r.Context(), sessionID, payload.Content)
	} else {
		message, err = h.chatSvc.ReceiveMessage(r.Context(), sessionID, payload.Content)
	}
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if errors.Is(err, chatservice.ErrSessionEnded) {
		utils.RespondError(w, http.StatusConflict, "session has ended")
		return
	}
	if err != nil {
		log.Printf("[chat] post message failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "message not sent")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"message":    message,
		"moderation": check,
	})
}

// handleGetMessages 返回解密后的消息序列
func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.GetDecryptedMessages(r.Context(), sessionID)
	if err != nil {
		log.Printf("[chat] get messages failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleMarkRead 标记对端消息已读
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.chatSvc.MarkMessagesRead(r.Context(), sessionID)
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("[chat] mark read failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to mark messages read")
		return
	}
	utils.RespondNoContent(w)
}

// handleEndSession 结束会话
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.chatSvc.EndSession(r.Context(), sessionID)
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("[chat] end session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	utils.RespondNoContent(w)
}

// handleDeleteSession 清除会话。对不存在的会话同样返回204。
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.chatSvc.DeleteSession(r.Context(), sessionID); err != nil {
		log.Printf("[chat] delete session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	utils.RespondNoContent(w)
}

// handleDeleteAll 一键清除全部聊天记录
func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteAllChats(r.Context()); err != nil {
		log.Printf("[chat] delete all failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete chats")
		return
	}
	utils.RespondNoContent(w)
}

// handleRemainingTime 返回距自动删除的剩余毫秒数
func (h *Handler) handleRemainingTime(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	remaining, err := h.chatSvc.GetRemainingTime(r.Context(), sessionID)
	if err != nil {
		log.Printf("[chat] remaining time failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load remaining time")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int64{"remainingMs": remaining.Milliseconds()})
}

// handleCountdown 以SSE每秒推送剩余时间，归零后发expired事件并关闭。
// UI拿到0或负值时应视为已过期并退出会话界面。
func (h *Handler) handleCountdown(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		remaining, err := h.chatSvc.GetRemainingTime(ctx, sessionID)
		if err != nil {
			log.Printf("[chat] countdown read failed for session=%s: %v", sessionID, err)
			utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": "countdown unavailable"})
			return
		}
		if remaining <= 0 {
			utils.SendSSEEvent(w, flusher, "expired", map[string]int64{"remainingMs": 0})
			return
		}

		utils.SendSSEEvent(w, flusher, "countdown", map[string]int64{"remainingMs": remaining.Milliseconds()})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

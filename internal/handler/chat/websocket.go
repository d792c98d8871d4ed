package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kandedongma/foreigner-app/backend/internal/model/moderation"
	chatservice "github.com/kandedongma/foreigner-app/backend/internal/service/chat"
	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
)

// WebSocketHandler 在一条长连接上交换会话消息。客户端发明文，
// 服务端过审核、加密落盘后回推消息封装。
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	modSvc   *moderationservice.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器。
func NewWebSocketHandler(chatSvc *chatservice.Service, modSvc *moderationservice.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		modSvc:  modSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由。
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/chat/ws/{sessionID}", h.handleWebSocket)
}

type inboundFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	SenderID string `json:"senderId"`
}

type outboundFrame struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId,omitempty"`
	Data       any    `json:"data,omitempty"`
	Moderation any    `json:"moderation,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}

		switch frame.Type {
		case "send", "receive":
			h.handleChatFrame(conn, sessionID, frame)
		case "read":
			if err := h.chatSvc.MarkMessagesRead(context.Background(), sessionID); err != nil {
				h.writeError(conn, sessionID, "failed to mark messages read")
			}
		default:
			h.writeError(conn, sessionID, "unknown frame type")
		}
	}
}

func (h *WebSocketHandler) handleChatFrame(conn *websocket.Conn, sessionID string, frame inboundFrame) {
	if frame.Content == "" {
		h.writeError(conn, sessionID, "content is required")
		return
	}

	check := h.modSvc.CheckMessage(frame.Content, frame.SenderID)
	if check.RiskLevel == moderation.RiskCritical {
		h.write(conn, outboundFrame{
			Type:       "blocked",
			SessionID:  sessionID,
			Moderation: check,
			Timestamp:  time.Now().UnixMilli(),
		})
		return
	}

	ctx := context.Background()
	var (
		message any
		err     error
	)
	if frame.Type == "send" {
		message, err = h.chatSvc.SendMessage(ctx, sessionID, frame.Content)
	} else {
		message, err = h.chatSvc.ReceiveMessage(ctx, sessionID, frame.Content)
	}
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		h.writeError(conn, sessionID, "session not found")
		return
	}
	if errors.Is(err, chatservice.ErrSessionEnded) {
		h.writeError(conn, sessionID, "session has ended")
		return
	}
	if err != nil {
		log.Printf("[ws] store message failed for session=%s: %v", sessionID, err)
		h.writeError(conn, sessionID, "message not sent")
		return
	}

	h.write(conn, outboundFrame{
		Type:       "message",
		SessionID:  sessionID,
		Data:       message,
		Moderation: check,
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (h *WebSocketHandler) write(conn *websocket.Conn, frame outboundFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}

func (h *WebSocketHandler) writeError(conn *websocket.Conn, sessionID, message string) {
	h.write(conn, outboundFrame{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"error": message},
		Timestamp: time.Now().UnixMilli(),
	})
}

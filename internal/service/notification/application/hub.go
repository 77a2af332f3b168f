// internal/service/notification/application/hub.go
package application

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"meridian/internal/contracts"
	"meridian/internal/pkg/logger"
)

// Hub 维护用户到 WebSocket 连接的映射，把通知实时推给在线用户。
// 同一用户允许多个连接（多端在线），离线用户的通知只记日志丢弃。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{} // userId -> connections
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*websocket.Conn]struct{})}
}

// Register 登记一个用户连接。
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*websocket.Conn]struct{})
	}
	h.clients[userID][conn] = struct{}{}
	logger.L().Info().Str("userId", userID).Int("connections", len(h.clients[userID])).Msg("websocket client registered")
}

// Unregister 注销一个用户连接并关闭它。
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	conn.Close()
}

// Push 把通知推给该用户的全部在线连接。写失败的连接当场注销。
func (h *Hub) Push(ctx context.Context, ev contracts.NotificationEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[ev.UserID]))
	for conn := range h.clients[ev.UserID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		logger.Ctx(ctx).Info().
			Str("userId", ev.UserID).
			Str("orderId", ev.OrderID).
			Msg("user offline, notification dropped")
		return
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(ev); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("userId", ev.UserID).Msg("websocket write failed, dropping connection")
			h.Unregister(ev.UserID, conn)
		}
	}
	logger.Ctx(ctx).Info().
		Str("userId", ev.UserID).
		Str("orderId", ev.OrderID).
		Msg("✅ notification pushed")
}

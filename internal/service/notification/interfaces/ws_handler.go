// internal/service/notification/interfaces/ws_handler.go
package interfaces

import (
	"net/http"

	"github.com/gorilla/websocket"

	"meridian/internal/pkg/logger"
	"meridian/internal/service/notification/application"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 网关层已经做了鉴权和同源校验
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler 处理客户端的 WebSocket 订阅。
type WsHandler struct {
	hub *application.Hub
}

func NewWsHandler(hub *application.Hub) *WsHandler {
	return &WsHandler{hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *WsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.subscribeHandler)
}

func (h *WsHandler) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.hub.Register(userID, conn)

	// 读循环只为感知断开，客户端不向服务端发消息
	go func() {
		defer h.hub.Unregister(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/pkg/utils"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = 30 * time.Second
	feedReadLimit  = 4 * 1024
)

// FeedHandler streams committed ledger events of the caller's bakery over a websocket.
type FeedHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
}

// NewFeedHandler creates a FeedHandler. An empty origin list or "*" accepts any origin.
func NewFeedHandler(hub *events.Hub, allowedOrigins []string) *FeedHandler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// InventoryFeed upgrades the connection and forwards events until either side goes away.
func (h *FeedHandler) InventoryFeed(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if actor.BakeryID == "" {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "The inventory feed is scoped to a bakery", ""))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.LogError(err, "InventoryFeed: Failed to upgrade connection")
		return
	}

	sub := h.hub.Subscribe(actor.BakeryID)
	utils.LogInfo("Inventory feed connected", map[string]interface{}{"bakery_id": actor.BakeryID, "user_id": actor.UserID})

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// readPump drains client frames so pongs and close frames are processed.
func (h *FeedHandler) readPump(conn *websocket.Conn, sub *events.Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(feedReadLimit)
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.LogWarn("Inventory feed closed unexpectedly", map[string]interface{}{"bakery_id": sub.BakeryID, "error": err.Error()})
			}
			return
		}
	}
}

func (h *FeedHandler) writePump(conn *websocket.Conn, sub *events.Subscriber) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		}
	}
}

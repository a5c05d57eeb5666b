package handlers

import (
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetk3436/netwatch/internal/broadcast"
	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// StreamHandler pushes processed alerts to websocket clients.
type StreamHandler struct {
	hub *broadcast.Hub
}

func NewStreamHandler(hub *broadcast.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// UpgradeCheck rejects plain HTTP requests and unknown categories before the
// websocket handshake.
func (h *StreamHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if cat := c.Params("category"); cat != "" {
			if !models.Category(strings.ToUpper(cat)).Valid() {
				return fail(c, fiber.StatusNotFound, "Unknown alert category")
			}
		}
		return c.Next()
	}
}

// HandleAlerts streams /topic/alerts, or /topic/alerts/<category> when the
// route carries a category.
func (h *StreamHandler) HandleAlerts() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		topic := broadcast.TopicPrefix
		if cat := c.Params("category"); cat != "" {
			topic += "/" + models.Category(strings.ToUpper(cat)).Topic()
		}

		sub := h.hub.Subscribe(topic)
		defer h.hub.Unsubscribe(sub)
		slog.Info("Alert stream opened", "topic", topic, "remote", c.RemoteAddr().String())

		// reader: detects client close; inbound frames are ignored
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case payload, ok := <-sub.C:
				if !ok {
					return
				}
				_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
					slog.Debug("Alert stream write failed", "topic", topic, "error", err)
					return
				}
			case <-ping.C:
				_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				slog.Info("Alert stream closed", "topic", topic, "dropped", sub.Dropped())
				return
			}
		}
	})
}

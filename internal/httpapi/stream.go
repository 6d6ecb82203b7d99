package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// stream upgrades to a WebSocket and forwards every hub message as a text
// frame. A subscriber the hub drops for being slow gets a close frame.
func (rt *Routes) stream(c *gin.Context) {
	conn, err := rt.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rt.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	msgs, unsubscribe := rt.hub.Subscribe()
	rt.logger.Debug("price subscriber connected", zap.String("remote", c.ClientIP()))

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer conn.Close()

		for msg := range msgs {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"),
			time.Now().Add(time.Second))
	}()

	// reads only detect the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	unsubscribe()
	<-writeDone
	rt.logger.Debug("price subscriber disconnected", zap.String("remote", c.ClientIP()))
}

package http

import (
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/broadcast"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsHandler registers the connection with the hub and holds the request
// until the client goes away or the hub closes the subscriber.
func wsHandler(hub *broadcast.Hub, writeTimeout time.Duration, lg *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// upgrader already replied
			lg.Debug("websocket upgrade failed", zap.Error(err))
			return nil
		}

		sub := broadcast.NewWSSubscriber(conn, writeTimeout)
		id := hub.Add(sub)
		defer hub.Remove(id)

		if err := sub.ReadLoop(); err != nil &&
			!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			lg.Debug("websocket closed", zap.String("subscriber", id), zap.Error(err))
		}
		return nil
	}
}

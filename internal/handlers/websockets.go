package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"imagedetect/internal/logger"
	ws "imagedetect/internal/services/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers a viewer with the hub. Viewers only
// receive; anything they send is discarded.
func ViewWebsocketHandler(hub *ws.HubService, log *logger.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		connection, err := Upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Warning("WebSocket upgrade error: %v", err)
			return nil
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(pongWait))
		connection.SetPongHandler(func(string) error {
			return connection.SetReadDeadline(time.Now().Add(pongWait))
		})

		if !hub.Register(connection) {
			connection.Close()
			return nil
		}
		defer hub.Unregister(connection)

		done := make(chan struct{})
		defer close(done)
		go keepAlive(connection, done)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				log.Debug("Viewer disconnected: %v", err)
				return nil
			}
		}
	}
}

// keepAlive pings the viewer until done is closed. WriteControl may run
// concurrently with the hub's writes.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

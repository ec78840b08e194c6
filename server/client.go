package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cardroomhq/blackjack/internal/engine/repositories"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn // Websocket connection
	send chan []byte     // Buffered channel of outbound bytes
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

func (c *Client) disconnect() {
	c.hub.unregister <- c
	c.conn.Close()
}

// readPump pumps subscription requests from the websocket connection to
// the hub.
//
// The application runs readPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.disconnect()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Websocket unexpected close", "error", err)
			}
			break
		}
		if err = c.processMessage(message); err != nil {
			slog.Warn("Process websocket message", "error", err)
		}
	}
}

// processMessage handles one subscription request from the client
func (c *Client) processMessage(message []byte) error {
	var msg base
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Action {
	case actionSubscribeTable:
		var req subscribeTable
		if err := json.Unmarshal(message, &req); err != nil {
			return err
		}
		tableID, err := uuid.Parse(req.TableID)
		if err != nil {
			return fmt.Errorf("invalid table id %q: %w", req.TableID, err)
		}
		c.hub.subscribe <- subscription{client: c, channel: repositories.TableChannelPrefix + tableID.String()}

	case actionUnsubscribeTable:
		var req unsubscribeTable
		if err := json.Unmarshal(message, &req); err != nil {
			return err
		}
		c.hub.unsubscribe <- subscription{client: c, channel: repositories.TableChannelPrefix + req.TableID}

	case actionSubscribeLobby:
		c.hub.subscribe <- subscription{client: c, channel: repositories.LobbyChannel}

	case actionUnsubscribeLobby:
		c.hub.unsubscribe <- subscription{client: c, channel: repositories.LobbyChannel}

	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}

	return nil
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, hub)
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

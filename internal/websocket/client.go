package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 5 / 6
	sendBuffer   = 16
	// Subscribers only listen; anything they send is drained and dropped.
	maxInbound = 512
)

// Client is one owner's invalidation subscription. The socket is closed with
// a policy violation once the token it was opened with expires.
type Client struct {
	conn      *websocket.Conn
	ownerID   string
	expiresAt time.Time
	send      chan []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, ownerID string, expiresAt time.Time) {
	if !time.Now().Before(expiresAt) {
		http.Error(w, "token expired", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{
		conn:      conn,
		ownerID:   ownerID,
		expiresAt: expiresAt,
		send:      make(chan []byte, sendBuffer),
	}
	hub.Register(ownerID, client)
	go client.push(hub)
	client.drain(hub)
}

func (c *Client) release(hub *Hub) {
	hub.Unregister(c.ownerID, c)
	_ = c.conn.Close()
}

func (c *Client) drain(hub *Hub) {
	defer c.release(hub)
	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) push(hub *Hub) {
	ticker := time.NewTicker(pingInterval)
	expiry := time.NewTimer(time.Until(c.expiresAt))
	defer func() {
		ticker.Stop()
		expiry.Stop()
		c.release(hub)
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-expiry.C:
			closing := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token expired")
			_ = c.conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(writeWait))
			return
		}
	}
}

package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"presenter/internal/models"
)

// Client is one live websocket connection. ID doubles as the connection
// identifier that memberships bind to.
type Client struct {
	ID   string
	Conn *websocket.Conn

	mu             sync.Mutex
	hook           func(models.WSFrame)
	presentationID string
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.NewString(), Conn: conn}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// SetPresentation records which presentation this connection joined.
func (c *Client) SetPresentation(id string) {
	c.mu.Lock()
	c.presentationID = id
	c.mu.Unlock()
}

func (c *Client) Presentation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presentationID
}

func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(frame)
}

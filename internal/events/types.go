package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/wellmatch/internal/match"
)

// EventType represents the type of event sent to clients
type EventType string

const (
	// EventTypeQuery is published for every answered or rejected match query
	EventTypeQuery EventType = "query"
	// EventTypeConnection is published when a client connects or disconnects
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event is the envelope written to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data"`
}

// QueryEvent describes one match query
type QueryEvent struct {
	Features   match.Vector `json:"features"`
	K          int          `json:"k"`
	Outcome    string       `json:"outcome"`
	Codinomes  []int        `json:"codinomes,omitempty"`
	Cached     bool         `json:"cached"`
	ClientIP   string       `json:"client_ip,omitempty"`
	DurationMS float64      `json:"duration_ms"`
}

// ConnectionEvent describes a client joining or leaving
type ConnectionEvent struct {
	Action    string `json:"action"` // connected or disconnected
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage is a message sent by a client: subscribe or ping
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Config contains hub settings
type Config struct {
	Username   string
	Password   string
	BufferSize int

	// TrustProxyHeaders reads the client IP from forwarding headers
	TrustProxyHeaders bool
}

// Stats tracks hub activity
type Stats struct {
	TotalConnections  int64     `json:"total_connections"`
	ActiveConnections int64     `json:"active_connections"`
	TotalBroadcasts   int64     `json:"total_broadcasts"`
	TotalMessages     int64     `json:"total_messages"`
	Dropped           int64     `json:"dropped"`
	LastBroadcast     time.Time `json:"last_broadcast"`
}

// Client is one connected WebSocket peer
type Client struct {
	ID          string
	IP          string
	UserAgent   string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan Event

	mu         sync.RWMutex
	subscribed map[EventType]bool // nil receives everything
}

func (c *Client) subscribe(types []EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(types) == 0 {
		c.subscribed = nil
		return
	}
	c.subscribed = make(map[EventType]bool, len(types))
	for _, t := range types {
		c.subscribed[t] = true
	}
}

func (c *Client) wants(t EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed == nil || c.subscribed[t]
}

type directed struct {
	client *Client
	event  Event
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pricing-scenario-lab/database"
)

// Message types published by the upstream forecast service
const (
	TypeForecastFacts = "forecast_facts"
	TypeCapacityFacts = "capacity_facts"
)

// Client ingests forecast and capacity facts from the upstream forecast
// service over WebSocket. The feed only appends fact rows; evaluation runs
// read whatever facts have landed when they start.
type Client struct {
	url     string
	header  http.Header
	conn    *websocket.Conn
	repo    *database.PricingRepository
	writeMu sync.Mutex
}

// FactMessage is the JSON envelope published by the upstream feed
type FactMessage struct {
	Type       string                  `json:"type"`
	Forecasts  []database.ForecastFact `json:"forecasts,omitempty"`
	Capacities []database.CapacityFact `json:"capacities,omitempty"`
}

type subscribeRequest struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// NewClient creates a new feed client
func NewClient(url, authToken string, repo *database.PricingRepository) *Client {
	header := make(http.Header)
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}

	return &Client{
		url:    url,
		header: header,
		repo:   repo,
	}
}

// Connect establishes the WebSocket connection and subscribes to both fact
// channels
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.conn = conn
	log.Printf("✅ Connected to forecast feed at %s", c.url)

	sub := subscribeRequest{
		Action:   "subscribe",
		Channels: []string{TypeForecastFacts, TypeCapacityFacts},
	}
	if err := c.writeJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	log.Println("📡 Subscribed to forecast and capacity fact channels")
	return nil
}

// Close closes the feed connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// StartPing keeps the connection alive with periodic control pings
func (c *Client) StartPing(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				c.writeMu.Unlock()
				if err != nil {
					log.Println("Failed to send feed ping:", err)
					return
				}
			}
		}
	}()
}

// Run reads fact messages until the context is canceled, reconnecting with
// exponential backoff on connection errors
func (c *Client) Run(ctx context.Context) {
	reconnectDelay := 5 * time.Second
	maxReconnectDelay := 60 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := c.readMessage()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}

				log.Printf("⚠️  Feed error: %v", err)
				log.Printf("🔄 Reconnecting to feed in %v...", reconnectDelay)

				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
				}

				if err := c.Connect(); err != nil {
					log.Printf("❌ Feed reconnection failed: %v", err)
					reconnectDelay = reconnectDelay * 2
					if reconnectDelay > maxReconnectDelay {
						reconnectDelay = maxReconnectDelay
					}
					continue
				}

				reconnectDelay = 5 * time.Second
				continue
			}

			if err := c.handleMessage(msg); err != nil {
				log.Printf("Feed handler error: %v", err)
				continue
			}
		}
	}
}

// readMessage reads and decodes one JSON fact message
func (c *Client) readMessage() (*FactMessage, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msg FactMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed message: %w", err)
	}
	return &msg, nil
}

// handleMessage stores the facts carried by one feed message. Capacity
// inserts are idempotent per (timestamp, zone), so redelivery after a
// reconnect is harmless.
func (c *Client) handleMessage(msg *FactMessage) error {
	switch msg.Type {
	case TypeForecastFacts:
		if err := c.repo.InsertForecastFacts(msg.Forecasts); err != nil {
			return err
		}
		log.Printf("📥 Ingested %d forecast facts", len(msg.Forecasts))
	case TypeCapacityFacts:
		if err := c.repo.InsertCapacityFacts(msg.Capacities); err != nil {
			return err
		}
		log.Printf("📥 Ingested %d capacity facts", len(msg.Capacities))
	default:
		return fmt.Errorf("unknown feed message type %q", msg.Type)
	}
	return nil
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteJSON(v)
}

package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by channel
	clients  map[*Client]bool
	channels map[string]map[*Client]bool // channel -> clients

	// Subscription management
	subscriptions map[string]map[*Client]bool // topic -> clients

	// Inbound messages from clients
	broadcast chan []byte

	// Register/unregister requests
	register   chan *Client
	unregister chan *Client

	// Channel subscription requests
	subscribe   chan *SubscriptionRequest
	unsubscribe chan *SubscriptionRequest

	// Buffered snapshots flushed on a timer
	priceBuffer  *PriceMessage
	ledgerBuffer *LedgerMessage

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Configuration
	config *HubConfig
}

// HubConfig contains hub configuration
type HubConfig struct {
	// Update intervals
	PriceInterval  time.Duration // Default: 500ms
	LedgerInterval time.Duration // Default: 1s

	// Connection limits
	MaxClientsPerIP  int
	MaxSubscriptions int

	// Rate limiting
	MessageRateLimit int // Messages per second per client
}

// DefaultHubConfig returns default hub configuration
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		PriceInterval:    500 * time.Millisecond,
		LedgerInterval:   time.Second,
		MaxClientsPerIP:  10,
		MaxSubscriptions: 50,
		MessageRateLimit: 100,
	}
}

// SubscriptionRequest represents a subscription request
type SubscriptionRequest struct {
	Client  *Client
	Channel string
	Action  string // "subscribe" or "unsubscribe"
}

// NewHub creates a new Hub
func NewHub(config *HubConfig) *Hub {
	if config == nil {
		config = DefaultHubConfig()
	}

	return &Hub{
		clients:       make(map[*Client]bool),
		channels:      make(map[string]map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		broadcast:     make(chan []byte, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *SubscriptionRequest, 256),
		unsubscribe:   make(chan *SubscriptionRequest, 256),
		config:        config,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	priceTicker := time.NewTicker(h.config.PriceInterval)
	ledgerTicker := time.NewTicker(h.config.LedgerInterval)

	defer priceTicker.Stop()
	defer ledgerTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case req := <-h.subscribe:
			h.handleSubscription(req)

		case req := <-h.unsubscribe:
			h.handleUnsubscription(req)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-priceTicker.C:
			h.broadcastPrice()

		case <-ledgerTicker.C:
			h.broadcastLedger()
		}
	}
}

// registerClient adds a new client
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
}

// unregisterClient removes a client
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		// Remove from all channels
		for channel, clients := range h.channels {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}

		// Remove from all subscriptions
		for topic := range h.subscriptions {
			delete(h.subscriptions[topic], client)
		}

		close(client.send)
	}
}

// handleSubscription handles a subscription request
func (h *Hub) handleSubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel := req.Channel
	client := req.Client

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true

	// Send subscription confirmation
	confirmation := &WSMessage{
		Type:    "subscribed",
		Channel: channel,
		Data:    nil,
	}
	data, _ := json.Marshal(confirmation)
	client.send <- data
}

// handleUnsubscription handles an unsubscription request
func (h *Hub) handleUnsubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel := req.Channel
	client := req.Client

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}

	// Send unsubscription confirmation
	confirmation := &WSMessage{
		Type:    "unsubscribed",
		Channel: channel,
		Data:    nil,
	}
	data, _ := json.Marshal(confirmation)
	client.send <- data
}

// broadcastMessage sends a message to all clients in a channel
func (h *Hub) broadcastMessage(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client buffer is full, skip
		}
	}
}

// BroadcastToChannel sends a message to all clients subscribed to a channel
func (h *Hub) BroadcastToChannel(channel string, message interface{}) {
	h.mu.RLock()
	clients, ok := h.channels[channel]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// Make a copy of clients to avoid holding lock during send
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	for _, client := range clientList {
		select {
		case client.send <- data:
		default:
			// Client buffer is full, skip
		}
	}
}

// ============ Channel-specific broadcasts ============

// UpdatePrice updates the buffered oracle price snapshot
func (h *Hub) UpdatePrice(price *PriceMessage) {
	h.mu.Lock()
	h.priceBuffer = price
	h.mu.Unlock()
}

// UpdateLedger updates the buffered ledger snapshot
func (h *Hub) UpdateLedger(ledger *LedgerMessage) {
	h.mu.Lock()
	h.ledgerBuffer = ledger
	h.mu.Unlock()
}

// broadcastPrice flushes the buffered price snapshot
func (h *Hub) broadcastPrice() {
	h.mu.RLock()
	price := h.priceBuffer
	h.mu.RUnlock()

	if price == nil {
		return
	}
	msg := &WSMessage{
		Type:    "price",
		Channel: "price",
		Data:    price,
	}
	h.BroadcastToChannel("price", msg)
}

// broadcastLedger flushes the buffered ledger snapshot
func (h *Hub) broadcastLedger() {
	h.mu.RLock()
	ledger := h.ledgerBuffer
	h.mu.RUnlock()

	if ledger == nil {
		return
	}
	msg := &WSMessage{
		Type:    "ledger",
		Channel: "ledger",
		Data:    ledger,
	}
	h.BroadcastToChannel("ledger", msg)
}

// BroadcastAuction broadcasts an auction lifecycle event
func (h *Hub) BroadcastAuction(auction *AuctionMessage) {
	msg := &WSMessage{
		Type:    "auction",
		Channel: "auctions",
		Data:    auction,
	}
	h.BroadcastToChannel("auctions", msg)
}

// BroadcastLiquidation broadcasts a completed liquidation
func (h *Hub) BroadcastLiquidation(record *LiquidationMessage) {
	msg := &WSMessage{
		Type:    "liquidation",
		Channel: "liquidations",
		Data:    record,
	}
	h.BroadcastToChannel("liquidations", msg)
}

// BroadcastPosition broadcasts a position update to a specific owner
func (h *Hub) BroadcastPosition(owner string, position *PositionMessage) {
	channel := "positions:" + owner
	msg := &WSMessage{
		Type:    "position",
		Channel: channel,
		Data:    position,
	}
	h.BroadcastToChannel(channel, msg)
}

// ============ Message Types ============

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	Data    interface{} `json:"data,omitempty"`
}

// PriceMessage represents an oracle price update
type PriceMessage struct {
	Price     string `json:"price"`
	Valid     bool   `json:"valid"`
	Timestamp int64  `json:"timestamp"`
}

// LedgerMessage represents the system-wide claim totals
type LedgerMessage struct {
	TotalCollateral string `json:"total_collateral"`
	TotalStable     string `json:"total_stable"`
	TotalLever      string `json:"total_lever"`
	Deficit         string `json:"deficit"`
	Timestamp       int64  `json:"timestamp"`
}

// AuctionMessage represents an auction lifecycle event
type AuctionMessage struct {
	AuctionID       uint64 `json:"auction_id"`
	Event           string `json:"event"` // "started", "purchase", "reset", "closed"
	ValueToBeBurned string `json:"value_to_be_burned"`
	Underlying      string `json:"underlying"`
	CurrentPrice    string `json:"current_price"`
	Timestamp       int64  `json:"timestamp"`
}

// LiquidationMessage represents a completed liquidation
type LiquidationMessage struct {
	RecordID     string `json:"record_id"`
	PositionID   uint64 `json:"position_id"`
	Owner        string `json:"owner"`
	AuctionID    uint64 `json:"auction_id"`
	LeverSeized  string `json:"lever_seized"`
	NetNav       string `json:"net_nav"`
	KeeperReward string `json:"keeper_reward"`
	Timestamp    int64  `json:"timestamp"`
}

// PositionMessage represents a position update
type PositionMessage struct {
	PositionID uint64 `json:"position_id"`
	Owner      string `json:"owner"`
	Tier       uint8  `json:"tier"`
	LBalance   string `json:"l_balance"`
	NetNav     string `json:"net_nav"`
	RiskLevel  uint8  `json:"risk_level"`
	Frozen     bool   `json:"frozen"`
	Timestamp  int64  `json:"timestamp"`
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelCount returns the number of active channels
func (h *Hub) GetChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// GetChannelClientCount returns the number of clients in a channel
func (h *Hub) GetChannelClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.channels[channel]; ok {
		return len(clients)
	}
	return 0
}

// ServeWS handles WebSocket upgrade requests
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = generateID()
	}

	userID := r.URL.Query().Get("user_id")
	ip := getClientIPFromRequest(r)

	client := NewClient(h, conn, clientID, userID, ip)

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Helper function to get client IP
func getClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}

// Generate a simple ID
func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// Package live fans out state-change events to subscribed WebSocket
// connections. Delivery is best-effort: no persistence, no replay - a
// disconnected subscriber misses events until it resubscribes and re-fetches
// current state. Publishing never blocks the caller.
package live

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Scope идентифицирует комнату подписки: турнир или конкретный матч.
type Scope string

func TournamentScope(tournamentID int) Scope {
	return Scope(fmt.Sprintf("tournament_%d", tournamentID))
}

func MatchScope(tournamentID, matchID int) Scope {
	return Scope(fmt.Sprintf("tournament_%d_match_%d", tournamentID, matchID))
}

// Типы событий, публикуемых координатором.
const (
	EventMatchInProgress = "MATCH_IN_PROGRESS"
	EventScoreReported   = "SCORE_REPORTED"
	EventMatchDisputed   = "MATCH_DISPUTED"
	EventMatchFinalized  = "MATCH_FINALIZED"
)

// Message - контракт сообщения живого канала.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Scope   Scope       `json:"scope,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Scope    Scope
	IsClosed bool
	Mu       sync.Mutex
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	scopes     map[Scope]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		scopes:     make(map[Scope]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

// add идемпотентен: повторная регистрация того же клиента - no-op.
func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.scopes[client.Scope]; !ok {
		h.scopes[client.Scope] = make(map[*Client]bool)
	}
	h.scopes[client.Scope][client] = true
	log.Printf("client subscribed to scope %s (%d total)", client.Scope, len(h.scopes[client.Scope]))
}

// remove идемпотентен: отписка отсутствующего клиента - no-op.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	scopeClients, ok := h.scopes[client.Scope]
	if !ok {
		return
	}
	if _, subscribed := scopeClients[client]; !subscribed {
		return
	}
	client.Mu.Lock()
	if !client.IsClosed {
		close(client.Send)
		client.IsClosed = true
	}
	client.Mu.Unlock()
	delete(scopeClients, client)
	if len(scopeClients) == 0 {
		delete(h.scopes, client.Scope)
	}
	log.Printf("client unsubscribed from scope %s", client.Scope)
}

// Publish доставляет сообщение всем открытым подпискам его scope.
// Медленный или мёртвый подписчик пропускается, вызов никогда не блокируется.
func (h *Hub) Publish(message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	scopeClients, ok := h.scopes[message.Scope]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshalling message for scope %s: %v", message.Scope, err)
		return
	}

	for client := range scopeClients {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("send channel full for scope %s, dropping message", message.Scope)
		}
		client.Mu.Unlock()
	}
}

// SubscriberCount - число открытых подписок scope (для тестов и метрик).
func (h *Hub) SubscriberCount(scope Scope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes[scope])
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		// Входящие сообщения клиентов игнорируются: канал односторонний.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("unexpected close for scope %s: %v", c.Scope, err)
			}
			break
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("write error for scope %s: %v", c.Scope, err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

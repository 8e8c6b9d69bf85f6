package services

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/config"
	"github.com/saty-git24/live-polling-system/internal/models"
)

// Kick failures reported back to the requester.
var (
	ErrKickUnauthorized  = errors.New("Unauthorized")
	ErrKickMissingTarget = errors.New("Missing target")
)

// kickGraceDelay gives the kicked client time to render the notice before
// the connection drops.
const kickGraceDelay = 300 * time.Millisecond

// Hub is the participant registry and broadcast bus. It tracks every
// connected observer with its declared role and fans out state-change
// events to all of them. Delivery is fire-and-forget: producers never block
// on slow consumers.
type Hub struct {
	// Connected clients and their participant records, keyed by connection ID
	clients      map[string]*Client
	participants map[string]*models.Participant

	// Broadcast queue drained by Run
	broadcast chan []byte

	metrics *Metrics
	log     *zap.Logger

	mu sync.RWMutex
}

func NewHub(metrics *Metrics, log *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		participants: make(map[string]*models.Participant),
		broadcast:    make(chan []byte, config.HubBroadcastBufferSize),
		metrics:      metrics,
		log:          log,
	}
}

// Run drains the broadcast queue. Producers enqueue marshaled frames; this
// loop is the only place that touches every client, so one slow consumer
// can only cost itself (Client.Send evicts on full buffer).
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mu.RLock()
		clients := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.RUnlock()

		for _, c := range clients {
			c.Send(message)
		}
	}
}

// Register adds a freshly accepted connection. The participant record
// arrives later via Join.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.metrics.IncrementConnections()
	h.log.Info("connection registered", zap.String("connection_id", c.ID))
}

// Unregister removes the connection and its participant record, then
// announces the new membership. Safe to call for unknown connections.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	c, existed := h.clients[connectionID]
	delete(h.clients, connectionID)
	delete(h.participants, connectionID)
	h.mu.Unlock()

	if !existed {
		return
	}

	c.Close()
	h.metrics.DecrementConnections()
	h.log.Info("connection unregistered", zap.String("connection_id", connectionID))
	h.BroadcastParticipantList()
}

// Join registers or replaces the participant record for a connection.
// Idempotent per connection: a re-join overwrites the previous record.
func (h *Hub) Join(connectionID, participantID, name string, role models.ParticipantRole) *models.Participant {
	if role != models.RoleModerator {
		role = models.RoleVoter
	}
	if participantID == "" {
		participantID = connectionID
	}
	name = normalizeDisplayName(name, role)

	p := models.NewParticipant(connectionID, participantID, name, role)

	h.mu.Lock()
	h.participants[connectionID] = p
	h.mu.Unlock()

	h.log.Info("participant joined",
		zap.String("connection_id", connectionID),
		zap.String("participant_id", participantID),
		zap.String("role", string(role)))

	h.BroadcastParticipantList()
	return p
}

// Leave drops only the participant record, keeping the raw connection.
func (h *Hub) Leave(connectionID string) {
	h.mu.Lock()
	_, existed := h.participants[connectionID]
	delete(h.participants, connectionID)
	h.mu.Unlock()

	if existed {
		h.BroadcastParticipantList()
	}
}

// Kick removes the target connection on a moderator's request. The caller
// is authorized when its own participant record has the moderator role, or
// when the request asserts the moderator role for exactly the requesting
// connection (a moderator may kick before having joined).
func (h *Hub) Kick(targetConnectionID, requesterConnectionID, assertedRole, assertedConnectionID string) error {
	h.mu.RLock()
	requester := h.participants[requesterConnectionID]
	h.mu.RUnlock()

	authorized := (requester != nil && requester.IsModerator()) ||
		(assertedRole == string(models.RoleModerator) && assertedConnectionID == requesterConnectionID)
	if !authorized {
		h.log.Warn("unauthorized kick attempt",
			zap.String("requester", requesterConnectionID),
			zap.String("target", targetConnectionID))
		return ErrKickUnauthorized
	}
	if targetConnectionID == "" {
		return ErrKickMissingTarget
	}

	h.mu.RLock()
	target := h.clients[targetConnectionID]
	h.mu.RUnlock()

	if target != nil {
		h.SendTo(targetConnectionID, models.MsgTypeKicked, models.KickedPayload{
			Reason: "Removed by moderator",
		})
		// Grace delay so the notice reaches the client before the close.
		go func() {
			time.Sleep(kickGraceDelay)
			h.Unregister(targetConnectionID)
		}()
	} else {
		// No live connection; still clear any stale registry entry.
		h.mu.Lock()
		delete(h.participants, targetConnectionID)
		h.mu.Unlock()
		h.BroadcastParticipantList()
	}

	h.log.Info("participant kicked",
		zap.String("requester", requesterConnectionID),
		zap.String("target", targetConnectionID))
	return nil
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Participants returns a snapshot of the registry. Order is unspecified.
func (h *Hub) Participants() []*models.Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := make([]*models.Participant, 0, len(h.participants))
	for _, p := range h.participants {
		list = append(list, p)
	}
	return list
}

// Voters returns the currently connected participants with the voter role.
// The poll service consults this for the new-poll gate.
func (h *Hub) Voters() []*models.Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var voters []*models.Participant
	for _, p := range h.participants {
		if p.Role == models.RoleVoter {
			voters = append(voters, p)
		}
	}
	return voters
}

// Broadcast pushes an event to every connection, best-effort.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(&models.WSMessage{Type: eventType, Payload: payload})
	if err != nil {
		h.log.Error("failed to marshal broadcast", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// Queue full; dropping keeps producers from blocking.
		h.metrics.IncrementBroadcastErrors()
		h.log.Warn("broadcast queue full, dropping event", zap.String("type", eventType))
	}
}

// BroadcastParticipantList announces current membership to everyone.
func (h *Hub) BroadcastParticipantList() {
	h.Broadcast(models.MsgTypeParticipantList, h.Participants())
}

// SendTo pushes an event to a single connection. Returns false when the
// connection is unknown or its buffer is full.
func (h *Hub) SendTo(connectionID, eventType string, payload interface{}) bool {
	h.mu.RLock()
	c := h.clients[connectionID]
	h.mu.RUnlock()

	if c == nil {
		return false
	}

	data, err := json.Marshal(&models.WSMessage{Type: eventType, Payload: payload})
	if err != nil {
		h.log.Error("failed to marshal message", zap.String("type", eventType), zap.Error(err))
		return false
	}
	return c.Send(data)
}

// GetMetrics exposes the shared metrics snapshot.
func (h *Hub) GetMetrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// Close shuts every connection down and stops the run loop.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.participants = make(map[string]*models.Participant)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		c.Close()
	}
	close(h.broadcast)
}

// normalizeDisplayName applies the display rules: blank voters become
// "Anonymous", moderators get a capitalized name defaulting to "Moderator".
func normalizeDisplayName(name string, role models.ParticipantRole) string {
	name = strings.TrimSpace(name)

	if role == models.RoleModerator {
		if name == "" {
			return "Moderator"
		}
		r, size := utf8.DecodeRuneInString(name)
		return strings.ToUpper(string(r)) + name[size:]
	}
	if name == "" {
		return "Anonymous"
	}
	return name
}

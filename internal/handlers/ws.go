package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/config"
	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/services"
)

// WSHandler upgrades connections and dispatches the client command set.
// Each connection gets an opaque connection ID; participants announce
// themselves with participant:join.
type WSHandler struct {
	hub            *services.Hub
	polls          *services.PollService
	ledger         *services.VoteLedger
	sched          *services.Scheduler
	allowedOrigins []string
	log            *zap.Logger
}

func NewWSHandler(hub *services.Hub, polls *services.PollService, ledger *services.VoteLedger, sched *services.Scheduler, allowedOrigins string, log *zap.Logger) *WSHandler {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return &WSHandler{
		hub:            hub,
		polls:          polls,
		ledger:         ledger,
		sched:          sched,
		allowedOrigins: origins,
		log:            log,
	}
}

// wsIncoming defers payload decoding until the type is known.
type wsIncoming struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandleWebSocket handles GET /ws
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub.ConnectionCount() >= config.MaxTotalConnections {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", zap.Error(err))
		return
	}

	connectionID := uuid.NewString()
	client := services.NewClient(connectionID, conn, h.hub, h.log)
	h.hub.Register(client)
	client.Start()
	defer h.hub.Unregister(connectionID)

	// Initial sync: the new connection learns the current poll right away.
	h.sendCurrentPoll(r.Context(), connectionID)

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.log.Debug("websocket read failed", zap.String("connection_id", connectionID), zap.Error(err))
			}
			return
		}

		if !client.CheckRateLimit() {
			h.hub.SendTo(connectionID, models.MsgTypeError, models.ErrorPayload{
				Message: "Rate limit exceeded. Please slow down.",
			})
			continue
		}

		var msg wsIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("malformed frame", zap.String("connection_id", connectionID), zap.Error(err))
			continue
		}
		h.dispatch(r.Context(), connectionID, &msg)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connectionID string, msg *wsIncoming) {
	switch msg.Type {
	case models.MsgTypeParticipantJoin:
		h.handleJoin(connectionID, msg.Payload)
	case models.MsgTypePollCreate:
		h.handleCreate(ctx, connectionID, msg.Payload)
	case models.MsgTypePollVote:
		h.handleVote(ctx, connectionID, msg.Payload)
	case models.MsgTypeParticipantKick:
		h.handleKick(connectionID, msg.Payload)
	case models.MsgTypeParticipantListRequest:
		h.hub.SendTo(connectionID, models.MsgTypeParticipantList, h.hub.Participants())
	default:
		h.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (h *WSHandler) sendCurrentPoll(ctx context.Context, connectionID string) {
	poll, err := h.polls.GetCurrentPoll(ctx)
	if err != nil {
		h.hub.SendTo(connectionID, models.MsgTypeError, models.ErrorPayload{
			Message: "Failed to fetch current poll",
		})
		return
	}
	h.hub.SendTo(connectionID, models.MsgTypePollCurrent, poll)
}

func (h *WSHandler) handleJoin(connectionID string, raw json.RawMessage) {
	var p models.JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	h.hub.Join(connectionID, p.ID, p.Name, models.ParticipantRole(p.Role))
}

func (h *WSHandler) handleCreate(ctx context.Context, connectionID string, raw json.RawMessage) {
	var p models.CreatePollPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	poll, endedPrev, err := h.polls.CreatePoll(ctx, p.Question, p.Options, p.Duration)
	if err != nil {
		h.hub.SendTo(connectionID, models.MsgTypeError, models.ErrorPayload{Message: err.Error()})
		return
	}
	announceNewPoll(h.sched, h.hub, poll, endedPrev)
}

func (h *WSHandler) handleVote(ctx context.Context, connectionID string, raw json.RawMessage) {
	var p models.VotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	result := h.ledger.SubmitVote(ctx, p.PollID, p.ParticipantID, p.OptionID)
	if !result.Accepted {
		h.hub.SendTo(connectionID, models.MsgTypeVoteError, models.VoteReplyPayload{Message: result.Message})
		return
	}

	h.hub.Broadcast(models.MsgTypePollUpdate, result.Poll)
	h.hub.SendTo(connectionID, models.MsgTypeVoteSuccess, models.VoteReplyPayload{Message: result.Message})
}

func (h *WSHandler) handleKick(connectionID string, raw json.RawMessage) {
	var p models.KickPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	err := h.hub.Kick(p.TargetConnectionID, connectionID, p.SenderRole, p.SenderConnectionID)
	if err != nil {
		h.hub.SendTo(connectionID, models.MsgTypeKickError, models.KickResultPayload{Message: err.Error()})
		return
	}
	h.hub.SendTo(connectionID, models.MsgTypeKickSuccess, models.KickResultPayload{
		TargetConnectionID: p.TargetConnectionID,
	})
}

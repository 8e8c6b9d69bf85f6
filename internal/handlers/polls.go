package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/security"
	"github.com/saty-git24/live-polling-system/internal/services"
	"github.com/saty-git24/live-polling-system/internal/storage"
)

// PollHandler is the HTTP surface over the engine. Every successful
// mutation is also announced on the hub so socket-connected clients stay in
// sync with HTTP-driven changes.
type PollHandler struct {
	polls  *services.PollService
	ledger *services.VoteLedger
	sched  *services.Scheduler
	hub    *services.Hub
	store  *storage.Fallback
	log    *zap.Logger
}

func NewPollHandler(polls *services.PollService, ledger *services.VoteLedger, sched *services.Scheduler, hub *services.Hub, store *storage.Fallback, log *zap.Logger) *PollHandler {
	return &PollHandler{
		polls:  polls,
		ledger: ledger,
		sched:  sched,
		hub:    hub,
		store:  store,
		log:    log,
	}
}

// announceNewPoll wires a created poll into the scheduler and tells every
// connection, including the implied closure of the previous poll.
func announceNewPoll(sched *services.Scheduler, hub *services.Hub, poll, endedPrev *models.Poll) {
	if endedPrev != nil {
		sched.Cancel(endedPrev.ID)
		hub.Broadcast(models.MsgTypePollEnded, endedPrev)
	}
	sched.Schedule(poll)
	hub.Broadcast(models.MsgTypePollNew, poll)
}

// CreatePoll handles POST /api/polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, endedPrev, err := h.polls.CreatePoll(r.Context(), req.Question, req.Options, req.Duration)
	if err != nil {
		var verr *models.ValidationError
		var cerr *models.ConflictError
		switch {
		case errors.As(err, &verr):
			respondError(w, http.StatusBadRequest, verr.Error())
		case errors.As(err, &cerr):
			respondError(w, http.StatusBadRequest, cerr.Message)
		default:
			h.log.Error("create poll failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, security.SanitizeErrorMessage(err))
		}
		return
	}

	announceNewPoll(h.sched, h.hub, poll, endedPrev)
	respondJSON(w, http.StatusCreated, poll)
}

// GetCurrentPoll handles GET /api/polls/current
func (h *PollHandler) GetCurrentPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.GetCurrentPoll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, security.SanitizeErrorMessage(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"poll": poll})
}

// SubmitVote handles POST /api/polls/vote
func (h *PollHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req models.VotePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PollID == "" || req.ParticipantID == "" || req.OptionID == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	result := h.ledger.SubmitVote(r.Context(), req.PollID, req.ParticipantID, req.OptionID)
	if !result.Accepted {
		respondJSON(w, http.StatusBadRequest, result)
		return
	}

	// Broadcast the fully applied state returned by the ledger.
	h.hub.Broadcast(models.MsgTypePollUpdate, result.Poll)
	respondJSON(w, http.StatusOK, result)
}

// EndPoll handles POST /api/polls/end
func (h *PollHandler) EndPoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollID string `json:"pollId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PollID == "" {
		respondError(w, http.StatusBadRequest, "Missing pollId")
		return
	}

	poll, err := h.polls.EndPoll(r.Context(), req.PollID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, security.SanitizeErrorMessage(err))
		return
	}
	if poll == nil {
		respondError(w, http.StatusNotFound, "Poll not found")
		return
	}

	h.sched.Cancel(poll.ID)
	h.hub.Broadcast(models.MsgTypePollEnded, poll)
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "poll": poll})
}

// CheckVoteStatus handles GET /api/polls/vote-status
func (h *PollHandler) CheckVoteStatus(w http.ResponseWriter, r *http.Request) {
	pollID := r.URL.Query().Get("pollId")
	participantID := r.URL.Query().Get("participantId")
	if pollID == "" || participantID == "" {
		respondError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	hasVoted := h.ledger.HasVoted(r.Context(), pollID, participantID)
	var selected interface{}
	if hasVoted {
		if optionID, ok := h.ledger.GetVote(r.Context(), pollID, participantID); ok {
			selected = optionID
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"hasVoted":         hasVoted,
		"selectedOptionId": selected,
	})
}

// GetPollHistory handles GET /api/polls/history
func (h *PollHandler) GetPollHistory(w http.ResponseWriter, r *http.Request) {
	history := h.polls.GetPollHistory(r.Context())
	if history == nil {
		history = []*models.Poll{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// Debug handles GET /api/polls/debug: inspects the fallback store when the
// durable one is down.
func (h *PollHandler) Debug(w http.ResponseWriter, r *http.Request) {
	mem := h.store.Memory()
	current, _ := mem.GetCurrentPoll(r.Context())
	history, _ := mem.PollHistory(r.Context())

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"durableAvailable": h.store.DurableAvailable(),
		"inMemory": map[string]interface{}{
			"current": current,
			"history": history,
		},
	})
}

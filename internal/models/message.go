package models

// WSMessage is the wire envelope for every WebSocket frame in both
// directions. Payload shapes are the typed structs below; the event-name
// set is closed.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client → Server event types
const (
	MsgTypeParticipantJoin        = "participant:join"
	MsgTypePollCreate             = "poll:create"
	MsgTypePollVote               = "poll:vote"
	MsgTypeParticipantKick        = "participant:kick"
	MsgTypeParticipantListRequest = "participant:list:request"
)

// Server → Client event types
const (
	MsgTypePollNew         = "poll:new"
	MsgTypePollUpdate      = "poll:update"
	MsgTypePollEnded       = "poll:ended"
	MsgTypePollCurrent     = "poll:current" // initial state sync on connection
	MsgTypeParticipantList = "participant:list"
	MsgTypeVoteSuccess     = "vote:success"
	MsgTypeVoteError       = "vote:error"
	MsgTypeKicked          = "participant:kicked"
	MsgTypeKickError       = "participant:kick:error"
	MsgTypeKickSuccess     = "participant:kick:success"
	MsgTypeError           = "error"
)

// JoinPayload announces a participant on a fresh connection.
type JoinPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreatePollPayload carries a moderator's new question.
type CreatePollPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"`
}

// VotePayload carries one participant's choice.
type VotePayload struct {
	PollID        string `json:"pollId"`
	ParticipantID string `json:"participantId"`
	OptionID      string `json:"optionId"`
}

// KickPayload asks for a connection's removal. SenderRole/SenderConnectionID
// let a not-yet-registered moderator assert its role for this exact
// connection; the handler verifies the assertion matches the requester.
type KickPayload struct {
	TargetConnectionID string `json:"targetConnectionId"`
	SenderConnectionID string `json:"senderConnectionId,omitempty"`
	SenderRole         string `json:"senderRole,omitempty"`
}

// KickedPayload tells the removed client why it is going away.
type KickedPayload struct {
	Reason string `json:"reason"`
}

// KickResultPayload answers the requester.
type KickResultPayload struct {
	TargetConnectionID string `json:"targetConnectionId,omitempty"`
	Message            string `json:"message,omitempty"`
}

// VoteReplyPayload answers the voting client privately.
type VoteReplyPayload struct {
	Message string `json:"message"`
}

// ErrorPayload is the generic per-connection error reply.
type ErrorPayload struct {
	Message string `json:"message"`
}

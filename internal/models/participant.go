package models

import "time"

type ParticipantRole string

const (
	RoleModerator ParticipantRole = "moderator"
	RoleVoter     ParticipantRole = "voter"
)

// Participant is one connected observer, keyed by its connection ID.
// Identity is a caller-supplied opaque token; no authentication happens here.
type Participant struct {
	ConnectionID string          `json:"connectionId"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Role         ParticipantRole `json:"role"`
	JoinedAt     time.Time       `json:"-"`
}

func NewParticipant(connectionID, id, name string, role ParticipantRole) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		ID:           id,
		Name:         name,
		Role:         role,
		JoinedAt:     time.Now(),
	}
}

func (p *Participant) IsModerator() bool {
	return p.Role == RoleModerator
}

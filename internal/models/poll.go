package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Poll is a single timed question. All times are unix milliseconds so the
// deadline survives a process restart exactly as persisted.
type Poll struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Options    []Option `json:"options"`
	StartTime  int64    `json:"startTime"`
	Duration   int      `json:"duration"` // seconds
	IsActive   bool     `json:"isActive"`
	TotalVotes int      `json:"totalVotes"`
}

// Option is one answer choice. Its position in Poll.Options is fixed at
// creation and its ID encodes that index.
type Option struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Vote records one participant's choice for one poll. The
// (PollID, ParticipantID) pair is unique; a second vote is rejected,
// never overwritten.
type Vote struct {
	PollID        string `json:"pollId"`
	ParticipantID string `json:"participantId"`
	OptionID      string `json:"selectedOptionId"`
	Timestamp     int64  `json:"timestamp"`
}

func NewPoll(question string, optionTexts []string, duration int) *Poll {
	options := make([]Option, len(optionTexts))
	for i, text := range optionTexts {
		options[i] = Option{
			ID:   fmt.Sprintf("opt-%d", i),
			Text: text,
		}
	}

	return &Poll{
		ID:        "poll-" + uuid.NewString(),
		Question:  question,
		Options:   options,
		StartTime: time.Now().UnixMilli(),
		Duration:  duration,
		IsActive:  true,
	}
}

// Deadline is the instant the poll must close.
func (p *Poll) Deadline() time.Time {
	return time.UnixMilli(p.StartTime + int64(p.Duration)*1000)
}

// Option returns the option with the given ID, or nil.
func (p *Poll) Option(optionID string) *Option {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the store's mutable state.
func (p *Poll) Clone() *Poll {
	cp := *p
	cp.Options = make([]Option, len(p.Options))
	copy(cp.Options, p.Options)
	return &cp
}

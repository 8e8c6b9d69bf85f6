package config

import "time"

// Poll constraints
const (
	MinPollOptions  = 2
	MaxPollOptions  = 10
	MinPollDuration = 5  // seconds
	MaxPollDuration = 60 // seconds

	MaxQuestionLength   = 300
	MaxOptionTextLength = 100

	// History queries against the durable store are capped; the in-memory
	// fallback list is unbounded.
	PollHistoryLimit = 50
)

// WebSocket connection limits and constraints
const (
	MaxTotalConnections  = 10000
	MaxMessagesPerSecond = 10
	RateLimitWindow      = time.Second

	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second
	PongTimeout  = 90 * time.Second // 3x ping interval for network delay tolerance

	ClientSendBufferSize   = 256
	HubBroadcastBufferSize = 256
)

// Durable store probing
const (
	StoreConnectTimeout = 2 * time.Second
	StoreQueryTimeout   = 5 * time.Second
)

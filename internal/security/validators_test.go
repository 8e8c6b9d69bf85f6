package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saty-git24/live-polling-system/internal/security"
)

func TestValidateText(t *testing.T) {
	t.Run("trims surrounding whitespace", func(t *testing.T) {
		text, err := security.ValidateText("  Pick one  ", 300)
		require.NoError(t, err)
		assert.Equal(t, "Pick one", text)
	})

	t.Run("rejects empty and whitespace-only text", func(t *testing.T) {
		_, err := security.ValidateText("", 300)
		assert.Error(t, err)
		_, err = security.ValidateText("   ", 300)
		assert.Error(t, err)
	})

	t.Run("enforces the length cap", func(t *testing.T) {
		_, err := security.ValidateText(strings.Repeat("a", 301), 300)
		assert.Error(t, err)

		text, err := security.ValidateText(strings.Repeat("a", 300), 300)
		require.NoError(t, err)
		assert.Len(t, text, 300)
	})

	t.Run("rejects control characters", func(t *testing.T) {
		_, err := security.ValidateText("line1\nline2", 300)
		assert.Error(t, err)
		_, err = security.ValidateText("tab\there", 300)
		assert.Error(t, err)
	})

	t.Run("allows unicode and punctuation", func(t *testing.T) {
		text, err := security.ValidateText("What's your favourite café?", 300)
		require.NoError(t, err)
		assert.Equal(t, "What's your favourite café?", text)
	})
}

func TestValidateParticipantName(t *testing.T) {
	valid := []string{
		"Alice",
		"Ann Marie",
		"O'Brien",
		"Jean-Luc",
		"user_42",
		"Dr. Who",
		"Élodie",
	}
	for _, name := range valid {
		t.Run("accepts "+name, func(t *testing.T) {
			got, err := security.ValidateParticipantName(name)
			require.NoError(t, err)
			assert.Equal(t, name, got)
		})
	}

	invalid := []string{
		"",
		"   ",
		strings.Repeat("a", 51),
		"<script>alert(1)</script>",
		"name;drop table",
		"a|b",
		"$(whoami)",
		"back`tick",
	}
	for _, name := range invalid {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := security.ValidateParticipantName(name)
			assert.Error(t, err)
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	t.Run("masks storage internals", func(t *testing.T) {
		cases := []string{
			`pq: duplicate key value violates unique constraint "votes_poll_id_participant_id_key"`,
			"sql: no rows in result set",
			"dial tcp 127.0.0.1:5432: connect: connection refused",
			"database is shutting down",
		}
		for _, msg := range cases {
			got := security.SanitizeErrorMessage(errors.New(msg))
			assert.Equal(t, "An error occurred while processing your request", got)
		}
	})

	t.Run("passes domain messages through", func(t *testing.T) {
		got := security.SanitizeErrorMessage(errors.New("question: text cannot be empty"))
		assert.Equal(t, "question: text cannot be empty", got)
	})

	t.Run("nil error", func(t *testing.T) {
		assert.Equal(t, "", security.SanitizeErrorMessage(nil))
	})
}

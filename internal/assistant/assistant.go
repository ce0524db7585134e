package assistant

import (
	"context"
	"errors"
)

const (
	RoleUser  = "user"
	RoleModel = "model"

	// SpeechSampleRate is the rate of the mono 16-bit PCM returned by Speak.
	SpeechSampleRate = 24000
)

var (
	ErrEmptyInput = errors.New("assistant: empty input")
	ErrNoResponse = errors.New("assistant: no response generated")
	ErrNoAudio    = errors.New("assistant: no audio generated")
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Assistant answers questions about the family holdings.
type Assistant interface {
	Chat(ctx context.Context, history []Message, input string) (string, error)
	QuickInsight(ctx context.Context) (string, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

// ContextSource provides the holdings summary placed in every prompt.
type ContextSource interface {
	Summary() string
}

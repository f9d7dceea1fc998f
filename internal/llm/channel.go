package llm

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

//go:embed instructions.md
var defaultInstructions string

// LoadInstructions reads an instruction document from path, or returns the
// built-in one when path is empty.
func LoadInstructions(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return defaultInstructions, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read instructions: %w", err)
	}
	if strings.TrimSpace(string(blob)) == "" {
		return "", fmt.Errorf("instructions file %s is empty", path)
	}
	return string(blob), nil
}

type Channel interface {
	Send(ctx context.Context, message string) (string, error)
}

type settings struct {
	historyTurns int
	callOptions  []llms.CallOption
}

type Option func(*settings)

// WithHistoryTurns caps how many request/response pairs a Chat keeps. Zero
// keeps the whole conversation.
func WithHistoryTurns(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.historyTurns = n
		}
	}
}

// WithJSONMode asks the model for a JSON response body.
func WithJSONMode() Option {
	return func(s *settings) {
		s.callOptions = append(s.callOptions, llms.WithJSONMode())
	}
}

func newSettings(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Chat is a conversational channel. The instruction document is sent once as
// the system message and every successful exchange is appended to the
// history, so later requests see earlier answers.
type Chat struct {
	model        llms.Model
	instructions string
	settings     settings

	mu      sync.Mutex
	history []llms.MessageContent
}

func NewChat(model llms.Model, instructions string, opts ...Option) *Chat {
	return &Chat{model: model, instructions: instructions, settings: newSettings(opts)}
}

func (c *Chat) Send(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]llms.MessageContent, 0, len(c.history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, c.instructions))
	messages = append(messages, c.history...)
	human := llms.TextParts(llms.ChatMessageTypeHuman, message)
	messages = append(messages, human)

	resp, err := c.model.GenerateContent(ctx, messages, c.settings.callOptions...)
	if err != nil {
		return "", wrapSendError(err)
	}
	text, err := firstChoice(resp)
	if err != nil {
		return "", err
	}

	c.history = append(c.history, human, llms.TextParts(llms.ChatMessageTypeAI, text))
	if limit := c.settings.historyTurns * 2; limit > 0 && len(c.history) > limit {
		c.history = append([]llms.MessageContent(nil), c.history[len(c.history)-limit:]...)
	}
	return text, nil
}

// OneShot sends the instruction document with every request and keeps no
// state between calls.
type OneShot struct {
	model        llms.Model
	instructions string
	settings     settings
}

func NewOneShot(model llms.Model, instructions string, opts ...Option) *OneShot {
	return &OneShot{model: model, instructions: instructions, settings: newSettings(opts)}
}

func (o *OneShot) Send(ctx context.Context, message string) (string, error) {
	prompt := strings.TrimRight(o.instructions, "\n") + "\n\n" + message
	text, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt, o.settings.callOptions...)
	if err != nil {
		return "", wrapSendError(err)
	}
	return text, nil
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("llm: empty response")
	}
	return resp.Choices[0].Content, nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

func NewGemini(ctx context.Context, apiKey, model string) (llms.Model, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	opts := []googleai.Option{googleai.WithAPIKey(apiKey)}
	if strings.TrimSpace(model) != "" {
		opts = append(opts, googleai.WithDefaultModel(model))
	}
	client, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// NewChannel builds the channel named by kind ("chat" or "oneshot") on top of
// model and paces it to rpm requests per minute.
func NewChannel(kind string, model llms.Model, instructions string, rpm int, opts ...Option) (Channel, error) {
	var ch Channel
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "chat":
		ch = NewChat(model, instructions, opts...)
	case "oneshot", "one-shot":
		ch = NewOneShot(model, instructions, opts...)
	default:
		return nil, fmt.Errorf("unsupported normalizer channel: %s", kind)
	}
	return NewPaced(ch, rpm), nil
}

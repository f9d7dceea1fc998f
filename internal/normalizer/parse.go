package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"koosseis/internal"
)

var (
	fenceOpen  = regexp.MustCompile("^```(json)?\\n?")
	fenceClose = regexp.MustCompile("\\n?```$")
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// StripFence removes one surrounding markdown code fence, with or without a
// json tag.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Parse decodes a normalizer response. The document may be the bare
// instrumentation object or wrap it under "instrumentation". The returned raw
// document is the fence-stripped response, unchanged otherwise.
func Parse(text string) (internal.Instrumentation, json.RawMessage, error) {
	cleaned := StripFence(text)
	if cleaned == "" {
		return internal.Instrumentation{}, nil, errors.New("empty response")
	}

	var envelope struct {
		Instrumentation json.RawMessage `json:"instrumentation"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return internal.Instrumentation{}, nil, fmt.Errorf("decode response: %w", err)
	}
	body := envelope.Instrumentation
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = json.RawMessage(cleaned)
	}

	var inst internal.Instrumentation
	if err := json.Unmarshal(body, &inst); err != nil {
		return internal.Instrumentation{}, nil, fmt.Errorf("decode instrumentation: %w", err)
	}
	if err := structValidator().Struct(inst); err != nil {
		return internal.Instrumentation{}, nil, fmt.Errorf("invalid instrumentation: %w", err)
	}
	return inst, json.RawMessage(cleaned), nil
}

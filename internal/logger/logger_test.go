package logger

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Level{
		"debug":   log.DebugLevel,
		" WARN ":  log.WarnLevel,
		"error":   log.ErrorLevel,
		"info":    log.InfoLevel,
		"unknown": log.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", JSON: true, Output: &buf})
	l.Info("processing", "index", 3)
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"msg":"processing"`)
	assert.Contains(t, out, `"index":3`)
	assert.NotContains(t, out, "hidden")
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("dropped")
	Component(logger, "monitor").Warn().Int("score", 42).Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at warn level, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "monitor" || entry["message"] != "kept" || entry["score"] != float64(42) {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatal("timestamp missing")
	}
}

func TestNewLoggerConsoleAndDefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Format: "console"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("default level should be info")
	}
	if !strings.Contains(out, "visible") || strings.HasPrefix(out, "{") {
		t.Fatalf("expected console output, got %q", out)
	}
}

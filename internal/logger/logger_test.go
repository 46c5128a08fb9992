package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(&buf, "debug", "json"), "session")

	log.Info().Str("exam_id", "e1").Msg("Attempt opened")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	for key, want := range map[string]string{
		"component": "session",
		"exam_id":   "e1",
		"message":   "Attempt opened",
		"level":     "info",
	} {
		if line[key] != want {
			t.Errorf("%s = %v, want %s", key, line[key], want)
		}
	}
}

func TestNewLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "shouting", "json")

	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug written at fallback level: %s", buf.String())
	}
	log.Info().Msg("shown")
	if buf.Len() == 0 {
		t.Error("info not written at fallback level")
	}
}

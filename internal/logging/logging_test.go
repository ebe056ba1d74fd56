package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"Warn":    LevelWarn,
		"WARNING": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogEmitsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelDebug, map[string]interface{}{"app": "vmrelay"})

	Info("session start", map[string]interface{}{"pid": 42})

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("output is not JSON: %q: %v", line, err)
	}
	if entry["msg"] != "session start" || entry["lvl"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["app"] != "vmrelay" || entry["pid"] != float64(42) {
		t.Fatalf("fields not merged: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelWarn, nil)

	Debug("hidden", nil)
	Info("hidden", nil)
	Warn("shown", nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("low-level entries leaked: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn entry missing: %q", out)
	}
}

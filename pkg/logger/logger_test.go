package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"off", LevelNone, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelNone, "none"},
		{Level(42), ""},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	if err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v; want %v", f, err, FormatJSON)
	}

	f, err = ParseFormat("")
	if err != nil || f != FormatConsole {
		t.Errorf("ParseFormat(\"\") = %v, %v; want %v", f, err, FormatConsole)
	}

	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, FormatJSON)
	log.Debug("hidden")
	log.Info("wrote file", zap.String("path", "concepts/reference_application.csv"))
	if err := log.Sync(); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	want := map[string]string{
		"level":  "info",
		"logger": "rmd2iniz",
		"msg":    "wrote file",
		"path":   "concepts/reference_application.csv",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, entry[k], v)
		}
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, FormatConsole)
	log.Debug("members selected", zap.Int("count", 2))

	out := buf.String()
	for _, want := range []string{"DEBUG", "members selected", `"count": 2`} {
		if !strings.Contains(out, want) {
			t.Errorf("console output %q missing %q", out, want)
		}
	}
}

func TestNewNone(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelNone, FormatJSON)
	log.Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("LevelNone wrote %q", buf.String())
	}
}

func TestFromNames(t *testing.T) {
	if _, err := FromNames("info", "console"); err != nil {
		t.Errorf("FromNames(info, console) error: %v", err)
	}
	if _, err := FromNames("chatty", "console"); err == nil {
		t.Error("FromNames(chatty, console) should fail")
	}
	if _, err := FromNames("info", "yaml"); err == nil {
		t.Error("FromNames(info, yaml) should fail")
	}
}

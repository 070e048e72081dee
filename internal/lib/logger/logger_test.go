package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

type recordingSender struct {
	messages []string
	levels   []slog.Level
}

func (s *recordingSender) SendMessageWithLevel(msg string, level slog.Level) {
	s.messages = append(s.messages, msg)
	s.levels = append(s.levels, level)
}

func TestSetupTelegramHandler_ForwardsByLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sender := &recordingSender{}

	lg := SetupTelegramHandler(base, sender, slog.LevelWarn)
	lg.With(slog.String("mod", "core")).Info("info message")
	lg.With(slog.String("mod", "core")).Error("run failed", slog.Int("status", 500))

	if len(sender.messages) != 1 {
		t.Fatalf("expected 1 forwarded message, got %d", len(sender.messages))
	}
	msg := sender.messages[0]
	for _, part := range []string{"ERROR: run failed", "mod: core", "status: 500"} {
		if !strings.Contains(msg, part) {
			t.Errorf("forwarded message %q should contain %q", msg, part)
		}
	}
	if !strings.Contains(buf.String(), "info message") || !strings.Contains(buf.String(), "run failed") {
		t.Errorf("base handler should receive every record, got: %s", buf.String())
	}
}

func TestSetupLogger_Environments(t *testing.T) {
	for _, env := range []string{envLocal, envDev, "unknown"} {
		if SetupLogger(env, t.TempDir()) == nil {
			t.Errorf("SetupLogger(%q) returned nil", env)
		}
	}
	lg := SetupLogger(envProd, t.TempDir())
	if lg.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("prod logger should not enable debug")
	}
}

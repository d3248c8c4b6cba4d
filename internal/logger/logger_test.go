package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	SetLevel(slog.LevelInfo)

	log := Named("inference")
	log.Info(context.Background(), "tick done", String("class", "Healthy"), Float64("probability", 0.95))

	out := buf.String()
	for _, want := range []string{"tick done", "class=Healthy", "probability=0.95", "component=inference", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer SetLevel(slog.LevelInfo)

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Error(ctx, "shown", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("error field missing: %q", out)
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

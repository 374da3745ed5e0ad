package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/telhawk-systems/alarm-console/common/middleware"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   string
	}{
		{name: "json format", format: "json", want: `"msg":"hello"`},
		{name: "text format", format: "text", want: "msg=hello"},
		{name: "empty format falls back to json", format: "", want: `"msg":"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, slog.LevelInfo, tt.format)
			logger.Info("hello")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output, got: %s", tt.want, buf.String())
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	logger.InfoContext(ctx, "polled")

	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Errorf("expected request_id in output, got: %s", buf.String())
	}

	buf.Reset()
	logger.InfoContext(context.Background(), "polled")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("did not expect request_id without one in context, got: %s", buf.String())
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelDebug, "json").Component("synchronizer")
	logger.DebugContext(context.Background(), "tick", Seq(3), AlarmID("abc123456"), Stage(2))

	out := buf.String()
	for _, want := range []string{`"component":"synchronizer"`, `"seq":3`, `"alarm_id":"abc123456"`, `"stage":2`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "text")
	logger.InfoContext(context.Background(), "quiet")
	logger.WarnContext(context.Background(), "loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Errorf("info record should be filtered at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn record missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrorAttr(t *testing.T) {
	if got := Error(errors.New("boom")); got.Value.String() != "boom" {
		t.Errorf("unexpected error attr %v", got)
	}
	if got := Error(nil); got.Value.String() != "" {
		t.Errorf("nil error should render empty, got %v", got)
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger := Discard()
	SetDefault(logger)
	if slog.Default() != logger.Logger {
		t.Error("SetDefault did not update slog.Default()")
	}
}

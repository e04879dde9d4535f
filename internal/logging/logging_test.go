package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigure_JSONHandlerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "warn", JSON: true, Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	L().Info("hidden")
	L().Warn("shown", "request_id", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, `"request_id":"abc"`) {
		t.Fatalf("want JSON attrs in output, got %s", out)
	}
}

func TestInitFromEnv_EnvOverridesConfig(t *testing.T) {
	t.Cleanup(func() { Configure(Options{}) })
	ctx := context.Background()

	t.Setenv("PYBAKE_LOG_LEVEL", "error")
	t.Setenv("PYBAKE_LOG_JSON", "")
	InitFromEnv("debug", false)
	if L().Enabled(ctx, slog.LevelWarn) {
		t.Fatal("PYBAKE_LOG_LEVEL=error should override the configured debug level")
	}

	t.Setenv("PYBAKE_LOG_LEVEL", "")
	InitFromEnv("debug", false)
	if !L().Enabled(ctx, slog.LevelDebug) {
		t.Fatal("configured level should apply when the env var is empty")
	}
}

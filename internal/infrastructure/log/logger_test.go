package log

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // 默认值
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("LOG_FORMAT", "")
		t.Setenv("ENV", "")

		cfg := NewConfigFromEnv()
		if cfg.Level != "info" {
			t.Errorf("expected default level info, got %s", cfg.Level)
		}
		if cfg.Format != "console" {
			t.Errorf("expected default format console, got %s", cfg.Format)
		}
	})

	t.Run("development mode", func(t *testing.T) {
		t.Setenv("ENV", "development")
		t.Setenv("LOG_LEVEL", "error") // 应该被覆盖

		cfg := NewConfigFromEnv()
		if cfg.Level != "debug" {
			t.Errorf("expected debug in development, got %s", cfg.Level)
		}
		if !cfg.AddSource {
			t.Error("expected AddSource true in development")
		}
	})
}

func TestNewCLIConfig(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENV", "")

	cfg := NewCLIConfig(false)
	if cfg.Output != "stderr" {
		t.Errorf("expected stderr output for cli, got %s", cfg.Output)
	}
	if cfg.Level != "warn" {
		t.Errorf("expected warn level for cli, got %s", cfg.Level)
	}

	if cfg := NewCLIConfig(true); cfg.Level != "debug" {
		t.Errorf("expected debug with verbose, got %s", cfg.Level)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		expected     bool
	}{
		{"true value", false, "true", true},
		{"false value", true, "false", false},
		{"invalid value", true, "invalid", true},
		{"missing env", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RECALL_TEST_BOOL", tt.envValue)
			if result := getEnvBool("RECALL_TEST_BOOL", tt.defaultValue); result != tt.expected {
				t.Errorf("getEnvBool = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.log")
	Init(&Config{Level: "debug", Format: "json", Output: "file:" + path})
	t.Cleanup(func() { Init(&Config{Level: "info", Format: "console", Output: "stderr"}) })

	if !IsDebugMode() {
		t.Error("expected debug mode")
	}

	NewModuleLogger("test", "component").Info("file message")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file message") {
		t.Errorf("expected message in log file, got %q", string(data))
	}
	if !strings.Contains(string(data), `"module":"test"`) {
		t.Errorf("expected module attr in log file, got %q", string(data))
	}
}

func TestLogCtxFromContext(t *testing.T) {
	ctx := WithPassID(WithRequestID(context.Background(), "req-1"), "pass-1")

	attrs := LogCtxFromContext(ctx)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if PassIDFromContext(ctx) != "pass-1" {
		t.Errorf("unexpected pass id %q", PassIDFromContext(ctx))
	}

	generated := WithRequestID(context.Background(), "")
	if v, _ := generated.Value(RequestContextID).(string); v == "" {
		t.Error("expected generated request id")
	}
}

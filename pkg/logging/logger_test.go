package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestConfigFor(t *testing.T) {
	tests := []struct {
		level  string
		pretty bool
		want   LogLevel
	}{
		{"debug", false, LevelDebug},
		{" WARN ", true, LevelWarn},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := ConfigFor(tt.level, tt.pretty)
			if cfg.Level != tt.want {
				t.Errorf("Level = %q, want %q", cfg.Level, tt.want)
			}
			if cfg.Pretty != tt.pretty {
				t.Errorf("Pretty = %v, want %v", cfg.Pretty, tt.pretty)
			}
			if cfg.Output == nil {
				t.Error("Output should default to stderr")
			}
		})
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger(ComponentAgent)
	logger.Info().Str("tier", "app-static-v1").Msg("Static tier provisioned")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("pretty output should not be JSON, got %q", output)
	}
	if !strings.Contains(output, "Static tier provisioned") || !strings.Contains(output, "app-static-v1") {
		t.Errorf("output = %q", output)
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		level LogLevel
		emit  func(zerolog.Logger)
		want  string
	}{
		{LevelDebug, func(l zerolog.Logger) { l.Debug().Str("key", "GET http://app/").Msg("Tier hit") }, `"level":"debug"`},
		{LevelInfo, func(l zerolog.Logger) { l.Info().Int("deleted", 2).Msg("Stale tiers deleted") }, `"deleted":2`},
		{LevelWarn, func(l zerolog.Logger) { l.Warn().Str("tier", "app-dynamic-v1").Msg("Storage quota exceeded") }, `"tier":"app-dynamic-v1"`},
		{LevelError, func(l zerolog.Logger) { l.Error().Str("resource", "/offline.html").Msg("Provisioning failed") }, `"resource":"/offline.html"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(Setup(Config{Level: tt.level, Output: buf}))

			output := buf.String()
			if !strings.Contains(output, tt.want) {
				t.Errorf("output = %q, want it to contain %s", output, tt.want)
			}
			if !strings.Contains(output, `"time":`) {
				t.Errorf("output = %q, want a timestamp", output)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger(ComponentTierManager)
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"tier-manager"`) {
		t.Errorf("Expected output to contain the component field, got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger(ComponentAgent)
	logger.Debug().Msg("request classified")
	logger.Info().Msg("agent serving")
	logger.Warn().Msg("store failed")
	logger.Error().Msg("provisioning failed")

	output := buf.String()
	for msg, want := range map[string]bool{
		"request classified":  false,
		"agent serving":       false,
		"store failed":        true,
		"provisioning failed": true,
	} {
		if got := strings.Contains(output, msg); got != want {
			t.Errorf("output contains %q = %v, want %v", msg, got, want)
		}
	}
}

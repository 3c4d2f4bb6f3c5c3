package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koscakluka/ema-s2s/core/events"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected missing config file to be tolerated, got %v", err)
	}
	if cfg.VoiceID != events.VoiceMatthew {
		t.Fatalf("expected default voice, got %q", cfg.VoiceID)
	}
	if cfg.MaxTokens != 1024 || cfg.TopP != 0.95 || cfg.Temperature != 0.7 {
		t.Fatalf("expected default inference parameters, got %d/%v/%v", cfg.MaxTokens, cfg.TopP, cfg.Temperature)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("expected defaults to validate, got %v", errs)
	}
}

func TestLoadReadsFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ema-s2s.yaml")
	content := "server_url: wss://speech.example.com/s2s\nvoice_id: ruth\nmax_tokens: 512\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("EMA_S2S_TEMPERATURE", "0.2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.ServerURL != "wss://speech.example.com/s2s" || cfg.VoiceID != events.VoiceRuth || cfg.MaxTokens != 512 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.Temperature != 0.2 {
		t.Fatalf("expected environment override, got %v", cfg.Temperature)
	}
	if cfg.TopP != 0.95 {
		t.Fatalf("expected default top_p, got %v", cfg.TopP)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing explicit config file")
	}
}

func TestSessionMapsSettings(t *testing.T) {
	cfg := Default()
	cfg.VoiceID = events.VoiceTiffany
	cfg.MaxTokens = 256
	cfg.SystemPrompt = "Be brief."

	session := cfg.Session()
	if session.AudioOutput.VoiceID != events.VoiceTiffany {
		t.Fatalf("expected voice tiffany, got %q", session.AudioOutput.VoiceID)
	}
	if session.AudioOutput.SampleRateHertz != 24000 {
		t.Fatalf("expected output profile to be kept, got %d", session.AudioOutput.SampleRateHertz)
	}
	if session.Inference.MaxTokens != 256 || session.SystemPrompt != "Be brief." {
		t.Fatalf("expected overrides, got %+v", session)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "http server", mutate: func(cfg *Config) { cfg.ServerURL = "http://localhost" }, wantErr: "scheme must be ws or wss"},
		{name: "missing server", mutate: func(cfg *Config) { cfg.ServerURL = "" }, wantErr: "server_url is required"},
		{name: "unknown voice", mutate: func(cfg *Config) { cfg.VoiceID = "hal" }, wantErr: "voice_id"},
		{name: "broken catalogue", mutate: func(cfg *Config) { cfg.ToolCatalogue = "{" }, wantErr: "tool_catalogue"},
		{name: "unknown backend", mutate: func(cfg *Config) { cfg.AudioBackend = "alsa" }, wantErr: "audio_backend"},
		{name: "bad log level", mutate: func(cfg *Config) { cfg.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "bad knowledge base", mutate: func(cfg *Config) { cfg.KnowledgeBaseURL = "ftp://kb" }, wantErr: "knowledge_base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected one error, got %v", errs)
			}
			if !strings.Contains(errs[0].Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, errs[0])
			}
		})
	}
}

func TestValidateClampsInference(t *testing.T) {
	cfg := Default()
	cfg.MaxTokens = 0
	cfg.TopP = 1.5
	cfg.Temperature = -1

	if errs := cfg.Validate(); len(errs) != 3 {
		t.Fatalf("expected three errors, got %v", errs)
	}
	if cfg.MaxTokens != 1024 || cfg.TopP != 1 || cfg.Temperature != 0 {
		t.Fatalf("expected clamped values, got %d/%v/%v", cfg.MaxTokens, cfg.TopP, cfg.Temperature)
	}
}

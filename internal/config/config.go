// Package config loads the ema-s2s settings from a YAML file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	orchestration "github.com/koscakluka/ema-s2s/core"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/spf13/viper"
)

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
	BackendNone      = "none"
)

type Config struct {
	ServerURL        string  `mapstructure:"server_url"`
	VoiceID          string  `mapstructure:"voice_id"`
	SystemPrompt     string  `mapstructure:"system_prompt"`
	ToolCatalogue    string  `mapstructure:"tool_catalogue"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	TopP             float64 `mapstructure:"top_p"`
	Temperature      float64 `mapstructure:"temperature"`
	AudioBackend     string  `mapstructure:"audio_backend"`
	KnowledgeBaseURL string  `mapstructure:"knowledge_base_url"`
	LogLevel         string  `mapstructure:"log_level"`
	LogFormat        string  `mapstructure:"log_format"`
	LogFile          string  `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		ServerURL:    "ws://localhost:8081",
		VoiceID:      events.DefaultAudioOutputConfig.VoiceID,
		SystemPrompt: events.DefaultSystemPrompt,
		MaxTokens:    events.DefaultInferenceConfig.MaxTokens,
		TopP:         events.DefaultInferenceConfig.TopP,
		Temperature:  events.DefaultInferenceConfig.Temperature,
		AudioBackend: BackendMiniaudio,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load reads cfgFile, or ema-s2s.yaml from the config directory and the
// working directory when cfgFile is empty. A missing default file is not an
// error. Environment variables prefixed with EMA_S2S override the file.
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.New(), cfgFile)
}

// LoadWith is Load on a caller owned viper instance, e.g. one with command
// line flags bound to it.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ema-s2s")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EMA_S2S")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so environment variables are picked up
// even without a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("voice_id", cfg.VoiceID)
	v.SetDefault("system_prompt", cfg.SystemPrompt)
	v.SetDefault("tool_catalogue", cfg.ToolCatalogue)
	v.SetDefault("max_tokens", cfg.MaxTokens)
	v.SetDefault("top_p", cfg.TopP)
	v.SetDefault("temperature", cfg.Temperature)
	v.SetDefault("audio_backend", cfg.AudioBackend)
	v.SetDefault("knowledge_base_url", cfg.KnowledgeBaseURL)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
}

// Session maps the settings onto what a session is opened with.
func (c *Config) Session() orchestration.Config {
	return orchestration.Config{
		Inference: events.InferenceConfig{
			MaxTokens:   c.MaxTokens,
			TopP:        c.TopP,
			Temperature: c.Temperature,
		},
		SystemPrompt:  c.SystemPrompt,
		AudioOutput:   events.DefaultAudioOutputConfig.WithVoice(c.VoiceID),
		ToolCatalogue: c.ToolCatalogue,
	}
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ema-s2s")
	}
	return "."
}

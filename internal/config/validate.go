package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/koscakluka/ema-s2s/core/events"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validBackends = map[string]bool{
	BackendMiniaudio: true,
	BackendPortaudio: true,
	BackendNone:      true,
}

// Validate checks the config and returns every problem found. Out of range
// inference parameters are clamped and reported.
func (c *Config) Validate() []error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, fmt.Errorf("server_url is required"))
	} else if u, err := url.Parse(c.ServerURL); err != nil {
		errs = append(errs, fmt.Errorf("server_url %q is not a valid URL: %w", c.ServerURL, err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("server_url scheme must be ws or wss, got %q", u.Scheme))
	}

	if c.VoiceID != "" && !slices.Contains(events.Voices(), c.VoiceID) {
		errs = append(errs, fmt.Errorf("voice_id %q is not one of %v", c.VoiceID, events.Voices()))
	}

	if c.ToolCatalogue != "" {
		if _, err := events.ParseToolConfig(c.ToolCatalogue); err != nil {
			errs = append(errs, fmt.Errorf("tool_catalogue: %w", err))
		}
	}

	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens %d must be positive, using %d", c.MaxTokens, events.DefaultInferenceConfig.MaxTokens))
		c.MaxTokens = events.DefaultInferenceConfig.MaxTokens
	}
	if c.TopP < 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p %v is outside [0, 1], clamping", c.TopP))
		c.TopP = min(max(c.TopP, 0), 1)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature %v is outside [0, 1], clamping", c.Temperature))
		c.Temperature = min(max(c.Temperature, 0), 1)
	}

	if !validBackends[strings.ToLower(c.AudioBackend)] {
		errs = append(errs, fmt.Errorf("audio_backend %q is not one of miniaudio, portaudio, none", c.AudioBackend))
	}

	if c.KnowledgeBaseURL != "" {
		if u, err := url.Parse(c.KnowledgeBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("knowledge_base_url %q must be an http or https URL", c.KnowledgeBaseURL))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "" && !strings.EqualFold(c.LogFormat, "text") && !strings.EqualFold(c.LogFormat, "json") {
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}

	return errs
}

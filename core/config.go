package orchestration

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-s2s/core/events"
)

// Config is what a session is opened with. Zero fields fall back to the
// defaults of the events package.
type Config struct {
	Inference    events.InferenceConfig
	SystemPrompt string
	AudioOutput  events.AudioOutputConfig
	// ToolCatalogue is the tool configuration as JSON text. Empty means the
	// default catalogue.
	ToolCatalogue string
}

func DefaultConfig() Config {
	return Config{
		Inference:    events.DefaultInferenceConfig,
		SystemPrompt: events.DefaultSystemPrompt,
		AudioOutput:  events.DefaultAudioOutputConfig,
	}
}

func (c Config) withDefaults() Config {
	if c.Inference == (events.InferenceConfig{}) {
		c.Inference = events.DefaultInferenceConfig
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = events.DefaultSystemPrompt
	}
	if c.AudioOutput == (events.AudioOutputConfig{}) {
		c.AudioOutput = events.DefaultAudioOutputConfig
	}
	return c
}

// Configure replaces the configuration used by the next session. A running
// session keeps the configuration it was opened with.
func (o *Orchestrator) Configure(config Config) {
	o.configMu.Lock()
	defer o.configMu.Unlock()
	o.config = config
}

// Config returns the configuration the next session will be opened with.
func (o *Orchestrator) Config() Config {
	o.configMu.Lock()
	defer o.configMu.Unlock()
	return o.config
}

// sessionConfig snapshots the configuration and resolves its tool
// catalogue. An invalid catalogue is reported through the returned error
// while a deep copy of the last valid catalogue is used in its place.
func (o *Orchestrator) sessionConfig() (Config, events.ToolConfig, error) {
	o.configMu.Lock()
	defer o.configMu.Unlock()

	config := o.config.withDefaults()

	if config.ToolCatalogue == "" {
		return config, events.DefaultToolConfig(), nil
	}

	catalogue, err := events.ParseToolConfig(config.ToolCatalogue)
	if err != nil {
		return config, o.lastValidToolsLocked(), fmt.Errorf("%w: %w", ErrInvalidToolCatalogue, err)
	}

	var lastValid events.ToolConfig
	if err := copier.CopyWithOption(&lastValid, &catalogue, copier.Option{DeepCopy: true}); err == nil {
		o.lastValidTools = &lastValid
	}
	return config, catalogue, nil
}

func (o *Orchestrator) lastValidToolsLocked() events.ToolConfig {
	if o.lastValidTools == nil {
		return events.DefaultToolConfig()
	}

	var catalogue events.ToolConfig
	if err := copier.CopyWithOption(&catalogue, o.lastValidTools, copier.Option{DeepCopy: true}); err != nil {
		return events.DefaultToolConfig()
	}
	return catalogue
}

package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

const (
	MediaTypeText  = "text/plain"
	MediaTypeJSON  = "application/json"
	MediaTypeAudio = "audio/lpcm"

	AudioTypeSpeech = "SPEECH"
	EncodingBase64  = "base64"

	VoiceMatthew = "matthew"
	VoiceRuth    = "ruth"
	VoiceTiffany = "tiffany"

	jsonSchemaDraft07 = "http://json-schema.org/draft-07/schema#"
)

const DefaultSystemPrompt = "You are a friend. The user and you will engage in a spoken dialog " +
	"exchanging the transcripts of a natural real-time conversation. Keep your responses short, " +
	"generally two or three sentences for chatty scenarios."

var ErrInvalidToolConfig = errors.New("invalid tool configuration")

// Voices lists the voice selectors known to work with the default output
// profile.
func Voices() []string { return []string{VoiceMatthew, VoiceRuth, VoiceTiffany} }

type InferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	Temperature float64 `json:"temperature"`
}

var DefaultInferenceConfig = InferenceConfig{
	MaxTokens:   1024,
	TopP:        0.95,
	Temperature: 0.7,
}

type MediaConfig struct {
	MediaType string `json:"mediaType"`
}

type AudioInputConfig struct {
	MediaType       string `json:"mediaType"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	SampleSizeBits  int    `json:"sampleSizeBits"`
	ChannelCount    int    `json:"channelCount"`
	AudioType       string `json:"audioType"`
	Encoding        string `json:"encoding"`
}

var DefaultAudioInputConfig = AudioInputConfig{
	MediaType:       MediaTypeAudio,
	SampleRateHertz: 16000,
	SampleSizeBits:  16,
	ChannelCount:    1,
	AudioType:       AudioTypeSpeech,
	Encoding:        EncodingBase64,
}

type AudioOutputConfig struct {
	MediaType       string `json:"mediaType"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	SampleSizeBits  int    `json:"sampleSizeBits"`
	ChannelCount    int    `json:"channelCount"`
	VoiceID         string `json:"voiceId"`
	Encoding        string `json:"encoding"`
	AudioType       string `json:"audioType"`
}

var DefaultAudioOutputConfig = AudioOutputConfig{
	MediaType:       MediaTypeAudio,
	SampleRateHertz: 24000,
	SampleSizeBits:  16,
	ChannelCount:    1,
	VoiceID:         VoiceMatthew,
	Encoding:        EncodingBase64,
	AudioType:       AudioTypeSpeech,
}

// WithVoice returns a copy of the profile using voice. An empty voice keeps
// the current one.
func (c AudioOutputConfig) WithVoice(voice string) AudioOutputConfig {
	if voice != "" {
		c.VoiceID = voice
	}
	return c
}

type ToolConfig struct {
	Tools []Tool `json:"tools"`
}

type Tool struct {
	ToolSpec ToolSpec `json:"toolSpec"`
}

type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema carries a JSON schema document serialized as a string, which
// is how the service expects it.
type InputSchema struct {
	JSON string `json:"json"`
}

// NewTool describes a tool whose input contract is reflected from the
// struct type of input.
func NewTool(name, description string, input any) Tool {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(input)
	schema.Version = jsonSchemaDraft07

	// The service expects an explicit, possibly empty, required list which
	// the reflected schema omits.
	var document map[string]json.RawMessage
	reflected, _ := json.Marshal(schema)
	_ = json.Unmarshal(reflected, &document)
	if _, ok := document["required"]; !ok {
		document["required"] = json.RawMessage("[]")
	}
	schemaJSON, _ := json.Marshal(document)

	return Tool{ToolSpec: ToolSpec{
		Name:        name,
		Description: description,
		InputSchema: InputSchema{JSON: string(schemaJSON)},
	}}
}

// QueryInput is the input contract shared by the knowledge lookup tools.
type QueryInput struct {
	Query string `json:"query,omitempty" jsonschema:"description=the query to search"`
}

// NoInput is the input contract of tools that take no arguments.
type NoInput struct{}

const (
	ToolGetDate         = "getDateTool"
	ToolGetKnowledge    = "getKbTool"
	ToolGetTravelPolicy = "getTravelPolicyTool"
)

// DefaultToolConfig returns a fresh copy of the default tool catalogue.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{Tools: []Tool{
		NewTool(ToolGetDate, "get information about the current day", NoInput{}),
		NewTool(ToolGetKnowledge, "get information about the Amazon policy", QueryInput{}),
		NewTool(ToolGetTravelPolicy, "get information about the travel with pet policy", QueryInput{}),
	}}
}

// ParseToolConfig validates a user supplied tool catalogue. Every tool needs
// a name and an input schema that is itself valid JSON.
func ParseToolConfig(text string) (ToolConfig, error) {
	var config ToolConfig
	if err := json.Unmarshal([]byte(text), &config); err != nil {
		return ToolConfig{}, fmt.Errorf("%w: %w", ErrInvalidToolConfig, err)
	}

	for i, tool := range config.Tools {
		if tool.ToolSpec.Name == "" {
			return ToolConfig{}, fmt.Errorf("%w: tool %d has no name", ErrInvalidToolConfig, i)
		}
		if !json.Valid([]byte(tool.ToolSpec.InputSchema.JSON)) {
			return ToolConfig{}, fmt.Errorf("%w: tool %q has an invalid input schema", ErrInvalidToolConfig, tool.ToolSpec.Name)
		}
	}
	if config.Tools == nil {
		config.Tools = []Tool{}
	}

	return config, nil
}

// Indented renders the catalogue the way users edit it.
func (c ToolConfig) Indented() string {
	text, _ := json.MarshalIndent(c, "", "  ")
	return string(text)
}

// Names lists the tool names in catalogue order.
func (c ToolConfig) Names() []string {
	names := make([]string, 0, len(c.Tools))
	for _, tool := range c.Tools {
		names = append(names, tool.ToolSpec.Name)
	}
	return names
}

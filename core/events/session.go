package events

type SessionStart struct {
	InferenceConfiguration InferenceConfig `json:"inferenceConfiguration"`
}

func (SessionStart) Kind() Kind { return KindSessionStart }

func NewSessionStart(inference InferenceConfig) SessionStart {
	return SessionStart{InferenceConfiguration: inference}
}

type PromptStart struct {
	PromptName                 string            `json:"promptName"`
	TextOutputConfiguration    MediaConfig       `json:"textOutputConfiguration"`
	AudioOutputConfiguration   AudioOutputConfig `json:"audioOutputConfiguration"`
	ToolUseOutputConfiguration MediaConfig       `json:"toolUseOutputConfiguration"`
	ToolConfiguration          ToolConfig        `json:"toolConfiguration"`
}

func (PromptStart) Kind() Kind { return KindPromptStart }

// NewPromptStart opens a prompt. The tool catalogue is copied so later edits
// by the caller do not leak into the event.
func NewPromptStart(promptName string, audioOutput AudioOutputConfig, tools ToolConfig) PromptStart {
	catalogue := make([]Tool, len(tools.Tools))
	copy(catalogue, tools.Tools)

	return PromptStart{
		PromptName:                 promptName,
		TextOutputConfiguration:    MediaConfig{MediaType: MediaTypeText},
		AudioOutputConfiguration:   audioOutput,
		ToolUseOutputConfiguration: MediaConfig{MediaType: MediaTypeJSON},
		ToolConfiguration:          ToolConfig{Tools: catalogue},
	}
}

type PromptEnd struct {
	PromptName string `json:"promptName"`
}

func (PromptEnd) Kind() Kind { return KindPromptEnd }

func NewPromptEnd(promptName string) PromptEnd {
	return PromptEnd{PromptName: promptName}
}

type SessionEnd struct{}

func (SessionEnd) Kind() Kind { return KindSessionEnd }

func NewSessionEnd() SessionEnd { return SessionEnd{} }

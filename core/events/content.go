package events

type ContentType string

const (
	ContentTypeText  ContentType = "TEXT"
	ContentTypeAudio ContentType = "AUDIO"
	ContentTypeTool  ContentType = "TOOL"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
	RoleTool      Role = "TOOL"
)

type ToolResultInputConfig struct {
	ToolUseID              string      `json:"toolUseId"`
	Type                   ContentType `json:"type"`
	TextInputConfiguration MediaConfig `json:"textInputConfiguration"`
}

// ContentStart opens a content stream. Streams the client opens are named by
// ContentName, streams the service opens carry a ContentID instead.
type ContentStart struct {
	PromptName   string      `json:"promptName,omitempty"`
	ContentName  string      `json:"contentName,omitempty"`
	ContentID    string      `json:"contentId,omitempty"`
	Type         ContentType `json:"type"`
	Interactive  bool        `json:"interactive"`
	Role         Role        `json:"role,omitempty"`
	// Opaque to the client, e.g. the generation stage of a text stream.
	AdditionalModelFields string `json:"additionalModelFields,omitempty"`

	TextInputConfiguration       *MediaConfig           `json:"textInputConfiguration,omitempty"`
	AudioInputConfiguration      *AudioInputConfig      `json:"audioInputConfiguration,omitempty"`
	ToolResultInputConfiguration *ToolResultInputConfig `json:"toolResultInputConfiguration,omitempty"`
	TextOutputConfiguration      *MediaConfig           `json:"textOutputConfiguration,omitempty"`
	AudioOutputConfiguration     *AudioOutputConfig     `json:"audioOutputConfiguration,omitempty"`
}

func (ContentStart) Kind() Kind { return KindContentStart }

// ID returns the identity of the stream regardless of who opened it.
func (e ContentStart) ID() string {
	if e.ContentID != "" {
		return e.ContentID
	}
	return e.ContentName
}

func NewTextContentStart(promptName, contentName string) ContentStart {
	return ContentStart{
		PromptName:             promptName,
		ContentName:            contentName,
		Type:                   ContentTypeText,
		Interactive:            true,
		TextInputConfiguration: &MediaConfig{MediaType: MediaTypeText},
	}
}

func NewAudioContentStart(promptName, contentName string, audioInput AudioInputConfig) ContentStart {
	return ContentStart{
		PromptName:              promptName,
		ContentName:             contentName,
		Type:                    ContentTypeAudio,
		Interactive:             true,
		AudioInputConfiguration: &audioInput,
	}
}

func NewToolContentStart(promptName, contentName, toolUseID string) ContentStart {
	return ContentStart{
		PromptName:  promptName,
		ContentName: contentName,
		Type:        ContentTypeTool,
		Interactive: false,
		Role:        RoleTool,
		ToolResultInputConfiguration: &ToolResultInputConfig{
			ToolUseID:              toolUseID,
			Type:                   ContentTypeText,
			TextInputConfiguration: MediaConfig{MediaType: MediaTypeText},
		},
	}
}

const (
	StopReasonEndTurn     = "END_TURN"
	StopReasonInterrupted = "INTERRUPTED"
)

type ContentEnd struct {
	PromptName  string      `json:"promptName,omitempty"`
	ContentName string      `json:"contentName,omitempty"`
	ContentID   string      `json:"contentId,omitempty"`
	Type        ContentType `json:"type,omitempty"`
	StopReason  string      `json:"stopReason,omitempty"`
}

func (ContentEnd) Kind() Kind { return KindContentEnd }

func (e ContentEnd) ID() string {
	if e.ContentID != "" {
		return e.ContentID
	}
	return e.ContentName
}

func NewContentEnd(promptName, contentName string) ContentEnd {
	return ContentEnd{PromptName: promptName, ContentName: contentName}
}

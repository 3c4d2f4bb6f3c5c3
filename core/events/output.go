package events

type TextOutput struct {
	ContentID string `json:"contentId"`
	Content   string `json:"content"`
	Role      Role   `json:"role,omitempty"`
}

func (TextOutput) Kind() Kind { return KindTextOutput }

// Interrupted reports whether the text is the assistant's barge-in marker.
func (e TextOutput) Interrupted() bool {
	if e.Role != RoleAssistant {
		return false
	}
	marker, ok := ParseTurnMarker(e.Content)
	return ok && marker.Interrupted
}

type AudioOutput struct {
	ContentID string `json:"contentId"`
	Content   string `json:"content"`
}

func (AudioOutput) Kind() Kind { return KindAudioOutput }

type ToolUse struct {
	ContentID string `json:"contentId"`
	ToolName  string `json:"toolName"`
	ToolUseID string `json:"toolUseId"`
	// JSON encoded tool input.
	Content string `json:"content"`
}

func (ToolUse) Kind() Kind { return KindToolUse }

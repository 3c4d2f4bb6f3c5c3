package events

type TextInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
	Role        Role   `json:"role"`
}

func (TextInput) Kind() Kind { return KindTextInput }

func NewTextInput(promptName, contentName, content string, role Role) TextInput {
	return TextInput{PromptName: promptName, ContentName: contentName, Content: content, Role: role}
}

func NewSystemPrompt(promptName, contentName, prompt string) TextInput {
	return NewTextInput(promptName, contentName, prompt, RoleSystem)
}

// NewToolResultInput carries a tool result as TOOL role text, the form the
// result takes inside a TOOL content stream.
func NewToolResultInput(promptName, contentName, result string) TextInput {
	return NewTextInput(promptName, contentName, result, RoleTool)
}

type AudioInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
	Role        Role   `json:"role"`
}

func (AudioInput) Kind() Kind { return KindAudioInput }

// NewAudioInput wraps one base64 encoded block of captured audio.
func NewAudioInput(promptName, contentName, content string) AudioInput {
	return AudioInput{PromptName: promptName, ContentName: contentName, Content: content, Role: RoleUser}
}

type ToolResult struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

func (ToolResult) Kind() Kind { return KindToolResult }

func NewToolResult(promptName, contentName, content string) ToolResult {
	return ToolResult{PromptName: promptName, ContentName: contentName, Content: content}
}

// Package events defines the typed protocol contract spoken with the remote
// speech-to-speech service.
//
// Every message on the wire is an envelope with a single tag:
//
//	{"event": {"<kind>": {...payload...}}}
//
// Event kinds are grouped by the lifecycle they belong to:
//
// session lifecycle (outbound)
//
//   - SessionStart (sessionStart): opens the session with inference
//     parameters.
//   - PromptStart (promptStart): opens a prompt with output profiles and the
//     tool catalogue.
//   - PromptEnd (promptEnd): closes the prompt.
//   - SessionEnd (sessionEnd): closes the session.
//
// content lifecycle (both directions)
//
//   - ContentStart (contentStart): opens a TEXT, AUDIO or TOOL content
//     stream. Outbound streams are named by contentName, inbound ones by
//     contentId.
//   - ContentEnd (contentEnd): closes a content stream. Inbound ends carry
//     the content type and a stop reason.
//
// content payloads (outbound)
//
//   - TextInput (textInput): text for a TEXT content, including the system
//     prompt and tool results sent with role TOOL.
//   - AudioInput (audioInput): one base64 block of captured 16-bit PCM.
//   - ToolResult (toolResult): tool result variant accepted by the service
//     in place of a TOOL role textInput.
//
// content payloads (inbound)
//
//   - TextOutput (textOutput): transcript or reply text. An assistant text
//     whose content is the marker {"interrupted": true} signals barge-in,
//     see [ParseTurnMarker].
//   - AudioOutput (audioOutput): base64 fragment of synthesized speech,
//     concatenated per contentId until the content ends.
//   - ToolUse (toolUse): tool invocation requested by the service.
//
// Anything else is parsed into [Unknown] and passed through uninterpreted.
//
// Constructors never stamp time. The timestamp of a [Message] is set at the
// boundary, when the event is actually sent or received.
package events

package events

import "time"

type Kind string

const (
	KindSessionStart Kind = "sessionStart"
	KindPromptStart  Kind = "promptStart"
	KindContentStart Kind = "contentStart"
	KindTextInput    Kind = "textInput"
	KindAudioInput   Kind = "audioInput"
	KindToolResult   Kind = "toolResult"
	KindContentEnd   Kind = "contentEnd"
	KindPromptEnd    Kind = "promptEnd"
	KindSessionEnd   Kind = "sessionEnd"

	KindTextOutput  Kind = "textOutput"
	KindAudioOutput Kind = "audioOutput"
	KindToolUse     Kind = "toolUse"

	// KindUnknown classifies envelopes whose tag is not part of the
	// protocol.
	KindUnknown Kind = "unknown"
)

// Event is an immutable protocol record. Implementations are plain value
// types; copying one never shares mutable state.
type Event interface {
	Kind() Kind
}

// Direction tells whether a message was sent or received.
type Direction string

const (
	DirectionOutbound Direction = "out"
	DirectionInbound  Direction = "in"
)

// Message is an event as observed at the connection boundary.
type Message struct {
	Event     Event
	Direction Direction
	Timestamp time.Time
}

// Name returns the wire tag of the message, which for unknown events is the
// tag that was received rather than [KindUnknown].
func (m Message) Name() string {
	if unknown, ok := m.Event.(Unknown); ok {
		return unknown.Name
	}
	if m.Event == nil {
		return string(KindUnknown)
	}
	return string(m.Event.Kind())
}

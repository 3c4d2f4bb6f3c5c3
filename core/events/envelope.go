package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEnvelope = errors.New("malformed event envelope")

// Unknown is an event whose tag is not part of the protocol. It is kept so
// it can still be displayed and logged.
type Unknown struct {
	Name    string
	Payload json.RawMessage
}

func (Unknown) Kind() Kind { return KindUnknown }

type envelope struct {
	Event map[string]json.RawMessage `json:"event"`
}

var parsers = map[Kind]func(json.RawMessage) (Event, error){
	KindSessionStart: parsePayload[SessionStart],
	KindPromptStart:  parsePayload[PromptStart],
	KindContentStart: parsePayload[ContentStart],
	KindTextInput:    parsePayload[TextInput],
	KindAudioInput:   parsePayload[AudioInput],
	KindToolResult:   parsePayload[ToolResult],
	KindContentEnd:   parsePayload[ContentEnd],
	KindPromptEnd:    parsePayload[PromptEnd],
	KindSessionEnd:   parsePayload[SessionEnd],
	KindTextOutput:   parsePayload[TextOutput],
	KindAudioOutput:  parsePayload[AudioOutput],
	KindToolUse:      parsePayload[ToolUse],
}

func parsePayload[T Event](payload json.RawMessage) (Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}

// Marshal wraps event in the single tag envelope.
func Marshal(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: nil event", ErrMalformedEnvelope)
	}

	name := string(event.Kind())
	var payload json.RawMessage
	if unknown, ok := event.(Unknown); ok {
		if unknown.Name == "" {
			return nil, fmt.Errorf("%w: unknown event without a name", ErrMalformedEnvelope)
		}
		name = unknown.Name
		payload = unknown.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}
	} else {
		var err error
		if payload, err = json.Marshal(event); err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
		}
	}

	return json.Marshal(envelope{Event: map[string]json.RawMessage{name: payload}})
}

// Parse classifies an inbound envelope by its tag. Tags outside the protocol
// come back as [Unknown] without an error; only an envelope that does not
// have exactly one tag, or a payload that does not fit its tag, fails with
// [ErrMalformedEnvelope].
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if len(env.Event) != 1 {
		return nil, fmt.Errorf("%w: expected one event tag, got %d", ErrMalformedEnvelope, len(env.Event))
	}

	for name, payload := range env.Event {
		parse, ok := parsers[Kind(name)]
		if !ok {
			return Unknown{Name: name, Payload: payload}, nil
		}
		event, err := parse(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEnvelope, name, err)
		}
		return event, nil
	}
	return nil, ErrMalformedEnvelope
}

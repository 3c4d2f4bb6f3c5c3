package orchestration

import (
	"context"
	"strings"

	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/tools"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseOpening Phase = "opening"
	PhaseActive  Phase = "active"
	PhaseClosing Phase = "closing"
)

// TextContent is a text stream of the current session as accumulated so
// far. Frozen streams have seen their contentEnd and no longer change.
type TextContent struct {
	ID          string
	Role        events.Role
	Content     string
	StopReason  string
	Interrupted bool
	Frozen      bool
	Events      []events.Event
}

func (t TextContent) clone() TextContent {
	t.Events = append([]events.Event(nil), t.Events...)
	return t
}

type session struct {
	promptName       string
	textContentName  string
	audioContentName string

	contents *contentArena

	// ctx scopes work started on behalf of the session, such as tool
	// calls. It is cancelled when the session is torn down.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(parent context.Context, promptName, textContentName, audioContentName string) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		promptName:       promptName,
		textContentName:  textContentName,
		audioContentName: audioContentName,
		contents:         newContentArena(),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// contentArena owns every content accumulator of one session, indexed by
// content id. It is dropped together with the session.
type contentArena struct {
	textOrder []string
	texts     map[string]*TextContent
	audio     map[string]*strings.Builder
	tools     map[string]*tools.Call
}

func newContentArena() *contentArena {
	return &contentArena{
		texts: map[string]*TextContent{},
		audio: map[string]*strings.Builder{},
		tools: map[string]*tools.Call{},
	}
}

func (a *contentArena) has(id string) bool {
	_, isText := a.texts[id]
	_, isAudio := a.audio[id]
	_, isTool := a.tools[id]
	return isText || isAudio || isTool
}

// open creates the accumulator for a content stream. Streams that are
// already known are left untouched.
func (a *contentArena) open(start events.ContentStart) bool {
	id := start.ID()
	if id == "" || a.has(id) {
		return false
	}

	switch start.Type {
	case events.ContentTypeText:
		a.texts[id] = &TextContent{ID: id, Role: start.Role, Events: []events.Event{start}}
		a.textOrder = append(a.textOrder, id)
	case events.ContentTypeAudio:
		a.audio[id] = &strings.Builder{}
	case events.ContentTypeTool:
		a.tools[id] = &tools.Call{}
	default:
		return false
	}
	return true
}

func (a *contentArena) text(id string) (*TextContent, bool) {
	text, ok := a.texts[id]
	if !ok || text.Frozen {
		return nil, false
	}
	return text, true
}

// takeAudio removes the audio accumulator of id and returns what it
// gathered.
func (a *contentArena) takeAudio(id string) (string, bool) {
	buffer, ok := a.audio[id]
	if !ok {
		return "", false
	}
	delete(a.audio, id)
	return buffer.String(), true
}

func (a *contentArena) takeTool(id string) (tools.Call, bool) {
	call, ok := a.tools[id]
	if !ok {
		return tools.Call{}, false
	}
	delete(a.tools, id)
	return *call, true
}

func (a *contentArena) snapshot() []TextContent {
	texts := make([]TextContent, 0, len(a.textOrder))
	for _, id := range a.textOrder {
		texts = append(texts, a.texts[id].clone())
	}
	return texts
}

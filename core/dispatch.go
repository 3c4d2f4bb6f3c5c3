package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-s2s/core/audio"
	"github.com/koscakluka/ema-s2s/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// malformedEventName tags inbound payloads that could not be parsed when
// they are handed to the observer.
const malformedEventName = "malformed"

// dispatch routes an inbound event to the accumulator of its content
// stream. Events for streams that were never opened are dropped.
func (o *Orchestrator) dispatch(ctx context.Context, event events.Event) {
	current := o.session
	if current == nil {
		o.drop(ctx, event, "no session")
		return
	}

	switch e := event.(type) {
	case events.ContentStart:
		o.stateMu.Lock()
		opened := current.contents.open(e)
		o.stateMu.Unlock()
		if !opened {
			o.drop(ctx, event, "duplicate or unsupported content")
		}

	case events.TextOutput:
		o.handleTextOutput(ctx, current, e)

	case events.AudioOutput:
		o.stateMu.Lock()
		buffer, ok := current.contents.audio[e.ContentID]
		if ok {
			buffer.WriteString(e.Content)
		}
		o.stateMu.Unlock()
		if !ok {
			o.drop(ctx, event, "unknown content")
		}

	case events.ToolUse:
		o.stateMu.Lock()
		call, ok := current.contents.tools[e.ContentID]
		if ok {
			call.ToolName = e.ToolName
			call.ToolUseID = e.ToolUseID
			call.Input = e.Content
		}
		o.stateMu.Unlock()
		if !ok {
			o.drop(ctx, event, "unknown content")
		}

	case events.ContentEnd:
		o.handleContentEnd(ctx, current, e)

	default:
		o.drop(ctx, event, "unexpected event")
	}
}

func (o *Orchestrator) handleTextOutput(ctx context.Context, current *session, e events.TextOutput) {
	interrupted := e.Interrupted()

	o.stateMu.Lock()
	text, ok := current.contents.text(e.ContentID)
	if !ok {
		o.stateMu.Unlock()
		o.drop(ctx, e, "unknown content")
		return
	}
	text.Content = e.Content
	if e.Role != "" {
		text.Role = e.Role
	}
	if interrupted {
		text.Interrupted = true
	}
	text.Events = append(text.Events, e)
	snapshot := text.clone()
	o.stateMu.Unlock()

	if interrupted {
		logger.DebugContext(ctx, "assistant interrupted", "content_id", e.ContentID)
		o.queue.Cancel()
		o.emitInterruption(e.ContentID)
	}
	o.emitText(snapshot)
}

// handleContentEnd flushes audio to playback, freezes text and runs tool
// calls. Each stream is finalized at most once, repeats are dropped. Audio
// that ends interrupted is discarded instead of played.
func (o *Orchestrator) handleContentEnd(ctx context.Context, current *session, e events.ContentEnd) {
	id := e.ID()

	o.stateMu.Lock()
	if payload, ok := current.contents.takeAudio(id); ok {
		o.stateMu.Unlock()
		if e.StopReason == events.StopReasonInterrupted {
			o.drop(ctx, e, "interrupted audio")
			return
		}
		o.flushAudio(ctx, id, payload)
		return
	}
	if text, ok := current.contents.text(id); ok {
		text.Frozen = true
		text.StopReason = e.StopReason
		text.Events = append(text.Events, e)
		snapshot := text.clone()
		o.stateMu.Unlock()
		o.emitText(snapshot)
		return
	}
	call, ok := current.contents.takeTool(id)
	o.stateMu.Unlock()
	if !ok {
		o.drop(ctx, e, "unknown or finished content")
		return
	}

	if o.callbacks.onToolCall != nil {
		o.callbacks.onToolCall(call)
	}
	go o.executeTool(current, call)
}

func (o *Orchestrator) flushAudio(ctx context.Context, id, payload string) {
	pcm, err := audio.Decode(payload)
	if err != nil {
		o.report(ctx, fmt.Errorf("failed to decode audio content %s: %w", id, err))
		return
	}
	if len(pcm) == 0 {
		return
	}
	seq := o.queue.Enqueue(pcm)
	logger.DebugContext(ctx, "audio content queued", "content_id", id, "seq", seq, "duration", pcm.Duration(audio.DefaultOutputSampleRate))
}

func (o *Orchestrator) drop(ctx context.Context, event events.Event, reason string) {
	eventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	logger.DebugContext(ctx, "dropping inbound event", "kind", event.Kind(), "reason", reason)
}

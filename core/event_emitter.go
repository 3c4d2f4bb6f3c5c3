package orchestration

import (
	"context"

	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (o *Orchestrator) setPhase(phase Phase) {
	o.stateMu.Lock()
	changed := o.phase != phase
	o.phase = phase
	o.stateMu.Unlock()

	if changed && o.callbacks.onPhaseChanged != nil {
		o.callbacks.onPhaseChanged(phase)
	}
}

func (o *Orchestrator) emitMessage(msg events.Message) {
	if o.callbacks.onEvent != nil {
		o.callbacks.onEvent(msg)
	}
}

func (o *Orchestrator) emitText(text TextContent) {
	if o.callbacks.onText != nil {
		o.callbacks.onText(text)
	}
}

func (o *Orchestrator) emitInterruption(contentID string) {
	if o.callbacks.onInterruption != nil {
		o.callbacks.onInterruption(contentID)
	}
}

func (o *Orchestrator) playbackStateChanged(state playback.State) {
	if o.callbacks.onPlayback != nil {
		o.callbacks.onPlayback(state)
	}
}

// report records err on the span of ctx and hands it to the observer.
func (o *Orchestrator) report(ctx context.Context, err error) {
	if err == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.WarnContext(ctx, "session fault", "error", err)

	if o.callbacks.onError != nil {
		o.callbacks.onError(err)
	}
}

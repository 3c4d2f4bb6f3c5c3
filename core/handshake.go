package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-s2s/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// open dials the service, runs the opening handshake and starts capture.
// Any failure leaves the orchestrator idle with the connection closed.
func (o *Orchestrator) open(ctx context.Context) (err error) {
	if phase := o.Phase(); phase != PhaseIdle {
		return fmt.Errorf("%w: session is %s", ErrSessionNotIdle, phase)
	}

	ctx, span := tracer.Start(ctx, "open session")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	o.setPhase(PhaseOpening)

	config, catalogue, configErr := o.sessionConfig()
	if configErr != nil {
		o.report(ctx, configErr)
	}

	if o.dialer == nil {
		o.setPhase(PhaseIdle)
		return ErrNoTransport
	}
	conn, err := o.dialer.Dial(ctx)
	if err != nil {
		o.setPhase(PhaseIdle)
		return fmt.Errorf("failed to connect: %w", err)
	}
	o.conn = conn
	o.inbound = conn.Inbound()

	if err := o.send(ctx, events.NewSessionStart(config.Inference)); err != nil {
		return errors.Join(err, o.teardown())
	}

	current := newSession(o.baseContext, o.newID(), o.newID(), o.newID())
	o.stateMu.Lock()
	o.session = current
	o.stateMu.Unlock()
	span.SetAttributes(attribute.String("prompt_name", current.promptName))

	handshake := []events.Event{
		events.NewPromptStart(current.promptName, config.AudioOutput, catalogue),
		events.NewTextContentStart(current.promptName, current.textContentName),
		events.NewSystemPrompt(current.promptName, current.textContentName, config.SystemPrompt),
		events.NewContentEnd(current.promptName, current.textContentName),
		events.NewAudioContentStart(current.promptName, current.audioContentName, events.DefaultAudioInputConfig),
	}
	for _, event := range handshake {
		if err := o.send(ctx, event); err != nil {
			return errors.Join(err, o.teardown())
		}
	}

	blocks, err := o.capture.Start(o.baseContext)
	if err != nil {
		// The service is never told about the session ending, the
		// connection is simply dropped.
		return errors.Join(fmt.Errorf("failed to start capture: %w", err), o.teardown())
	}
	o.blocks = blocks

	o.setPhase(PhaseActive)
	logger.InfoContext(ctx, "session active", "prompt_name", current.promptName)
	return nil
}

// close stops capture and runs the closing handshake. Playback already
// queued is left to finish.
func (o *Orchestrator) close(ctx context.Context) (err error) {
	if o.Phase() != PhaseActive || o.session == nil {
		return ErrNoActiveSession
	}

	ctx, span := tracer.Start(ctx, "close session", trace.WithAttributes(
		attribute.String("prompt_name", o.session.promptName),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	o.setPhase(PhaseClosing)

	var errs []error
	if err := o.capture.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop capture: %w", err))
	}
	o.blocks = nil

	current := o.session
	closing := []events.Event{
		events.NewContentEnd(current.promptName, current.audioContentName),
		events.NewPromptEnd(current.promptName),
		events.NewSessionEnd(),
	}
	for _, event := range closing {
		if err := o.send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, o.teardown())
	logger.InfoContext(ctx, "session closed", "prompt_name", current.promptName)
	return errors.Join(errs...)
}

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const shutdownTimeout = 5 * time.Second

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)

	for {
		select {
		case <-o.closeCh:
			o.shutdown()
			return
		case <-ctx.Done():
			o.shutdown()
			return
		case cmd := <-o.commands:
			cmd.reply <- o.handleCommand(ctx, cmd)
		case frame, ok := <-o.inbound:
			if !ok {
				o.inbound = nil
				o.handleTransportFault(ctx, transport.ErrConnectionClosed)
				continue
			}
			o.handleFrame(ctx, frame)
		case block, ok := <-o.blocks:
			if !ok {
				o.blocks = nil
				continue
			}
			o.handleBlock(ctx, block.Payload)
		case completion := <-o.queue.Completions():
			o.queue.Advance(completion)
		case result := <-o.toolResults:
			o.handleToolResult(ctx, result)
		}
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, cmd command) error {
	// The command context bounds the call, the loop context the
	// orchestrator lifetime. Either one cancels the work.
	cmdCtx, cancel := context.WithCancel(cmd.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var err error
	switch cmd.kind {
	case commandStart:
		err = o.open(cmdCtx)
	case commandEnd:
		err = o.close(cmdCtx)
	default:
		err = fmt.Errorf("unknown command %d", cmd.kind)
	}

	o.report(cmdCtx, err)
	return err
}

func (o *Orchestrator) handleFrame(ctx context.Context, frame transport.Frame) {
	if frame.Err != nil {
		o.handleTransportFault(ctx, frame.Err)
		return
	}

	eventsReceived.Add(ctx, 1)
	event, err := events.Parse(frame.Data)
	if err != nil {
		eventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "malformed")))
		logger.DebugContext(ctx, "dropping malformed event", "error", err)
		event = events.Unknown{Name: malformedEventName, Payload: frame.Data}
	} else {
		o.dispatch(ctx, event)
	}

	o.emitMessage(events.Message{Event: event, Direction: events.DirectionInbound, Timestamp: frame.ReceivedAt})
}

func (o *Orchestrator) handleBlock(ctx context.Context, payload string) {
	if o.Phase() != PhaseActive || o.session == nil {
		return
	}

	if err := o.send(ctx, events.NewAudioInput(o.session.promptName, o.session.audioContentName, payload)); err != nil {
		o.handleTransportFault(ctx, err)
	}
}

// handleTransportFault tears the session down without the closing
// handshake. There is no reconnect, a new session has to be started.
func (o *Orchestrator) handleTransportFault(ctx context.Context, err error) {
	if o.conn == nil {
		return
	}

	o.report(ctx, fmt.Errorf("session lost: %w", err))
	o.setPhase(PhaseClosing)
	o.teardown()
}

// send marshals event, writes it and hands it to the observer once it went
// out.
func (o *Orchestrator) send(ctx context.Context, event events.Event) error {
	if o.conn == nil {
		return transport.ErrConnectionClosed
	}

	data, err := events.Marshal(event)
	if err != nil {
		return err
	}
	if err := o.conn.Send(ctx, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", event.Kind(), err)
	}

	eventsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(event.Kind()))))
	o.emitMessage(events.Message{Event: event, Direction: events.DirectionOutbound, Timestamp: time.Now()})
	return nil
}

// teardown releases the capture device and the connection and forgets the
// session.
func (o *Orchestrator) teardown() error {
	var errs []error
	if err := o.capture.Stop(); err != nil {
		errs = append(errs, err)
	}
	o.blocks = nil

	if o.conn != nil {
		if err := o.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	o.conn = nil
	o.inbound = nil

	o.stateMu.Lock()
	if o.session != nil {
		o.session.cancel()
	}
	o.session = nil
	o.stateMu.Unlock()
	o.setPhase(PhaseIdle)

	return errors.Join(errs...)
}

func (o *Orchestrator) shutdown() {
	if o.Phase() == PhaseActive {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := o.close(ctx); err != nil {
			logger.Warn("failed to close session on shutdown", "error", err)
		}
		cancel()
	}
	o.queue.Cancel()
	o.queue.Close()
}

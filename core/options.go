package orchestration

import (
	"context"

	"github.com/koscakluka/ema-s2s/core/capture"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"github.com/koscakluka/ema-s2s/core/tools"
	"github.com/koscakluka/ema-s2s/core/transport"
)

type OrchestratorOption func(*Orchestrator)

func WithTransport(dialer transport.Dialer) OrchestratorOption {
	return func(o *Orchestrator) { o.dialer = dialer }
}

func WithCaptureDevice(device capture.Device, opts ...capture.PipelineOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.captureDevice = device
		o.captureOptions = opts
	}
}

func WithPlaybackSink(sink playback.Sink, opts ...playback.QueueOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackSink = sink
		o.playbackOptions = opts
	}
}

// ToolHandler executes a tool call and returns the serialized result sent
// back to the service.
type ToolHandler interface {
	Handle(ctx context.Context, call tools.Call) (string, error)
}

func WithToolHandler(handler ToolHandler) OrchestratorOption {
	return func(o *Orchestrator) { o.toolHandler = handler }
}

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) { o.config = config }
}

// WithIDGenerator replaces how prompt and content names are minted.
func WithIDGenerator(newID func() string) OrchestratorOption {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

type OrchestrateOptions struct {
	onPhaseChanged func(phase Phase)
	onEvent        func(msg events.Message)
	onText         func(text TextContent)
	onInterruption func(contentID string)
	onPlayback     func(state playback.State)
	onToolCall     func(call tools.Call)
	onError        func(err error)
}

type OrchestrateOption func(*OrchestrateOptions)

func WithPhaseCallback(callback func(phase Phase)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onPhaseChanged = callback
	}
}

// WithEventCallback registers a callback for every protocol message sent or
// received, stamped at the connection boundary.
//
// Inbound payloads that do not parse are delivered as [events.Unknown]. The
// callback runs on the dispatch loop and should not block.
func WithEventCallback(callback func(msg events.Message)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onEvent = callback
	}
}

// WithTextCallback registers a callback for every change of a text stream,
// including the final one when the stream is frozen.
func WithTextCallback(callback func(text TextContent)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onText = callback
	}
}

// WithInterruptionCallback registers a callback for barge-in. It receives
// the id of the text stream that carried the interruption marker.
func WithInterruptionCallback(callback func(contentID string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterruption = callback
	}
}

func WithPlaybackCallback(callback func(state playback.State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onPlayback = callback
	}
}

func WithToolCallCallback(callback func(call tools.Call)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onToolCall = callback
	}
}

// WithErrorCallback registers a callback for faults. None of them are fatal,
// at worst the current session is torn down.
func WithErrorCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onError = callback
	}
}

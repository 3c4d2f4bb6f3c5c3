package orchestration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-s2s/core/capture"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"github.com/koscakluka/ema-s2s/core/transport"
)

const (
	commandQueueCapacity    = 4
	toolResultQueueCapacity = 8
)

// Orchestrator drives speech-to-speech sessions against the remote service.
//
// All session state is owned by a single dispatch loop started with
// [Orchestrator.Orchestrate]. The loop serializes commands, inbound frames,
// capture blocks, playback completions and tool results, so none of the
// handlers run concurrently with each other.
type Orchestrator struct {
	dialer          transport.Dialer
	captureDevice   capture.Device
	captureOptions  []capture.PipelineOption
	playbackSink    playback.Sink
	playbackOptions []playback.QueueOption
	toolHandler     ToolHandler
	newID           func() string

	configMu       sync.Mutex
	config         Config
	lastValidTools *events.ToolConfig

	capture *capture.Pipeline
	queue   *playback.Queue

	// stateMu guards what is read from outside the loop.
	stateMu sync.RWMutex
	phase   Phase
	session *session

	// Only touched by the loop.
	conn    transport.Conn
	inbound <-chan transport.Frame
	blocks  <-chan capture.Block

	callbacks   OrchestrateOptions
	commands    chan command
	toolResults chan toolResult

	baseContext context.Context
	cancel      context.CancelFunc
	startOnce   sync.Once
	closeOnce   sync.Once
	started     atomic.Bool
	closeCh     chan struct{}
	done        chan struct{}
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		newID:       uuid.NewString,
		config:      DefaultConfig(),
		phase:       PhaseIdle,
		baseContext: context.Background(),
		commands:    make(chan command, commandQueueCapacity),
		toolResults: make(chan toolResult, toolResultQueueCapacity),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.capture = capture.NewPipeline(o.captureDevice, o.captureOptions...)
	o.queue = playback.NewQueue(o.playbackSink, append([]playback.QueueOption{
		playback.WithStateCallback(o.playbackStateChanged),
	}, o.playbackOptions...)...)

	return o
}

// Orchestrate starts the dispatch loop. Sessions can be started once it
// runs. Cancelling ctx closes the orchestrator.
//
// Contract: call Orchestrate at most once per orchestrator instance, later
// calls are ignored.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}

	o.startOnce.Do(func() {
		for _, opt := range opts {
			opt(&o.callbacks)
		}

		o.baseContext, o.cancel = context.WithCancel(ctx)
		o.started.Store(true)
		go o.run(o.baseContext)
	})
}

// Close ends any active session and stops the dispatch loop. Playback still
// queued is dropped.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closeCh)
		if o.cancel != nil {
			o.cancel()
		}
		if o.started.Load() {
			<-o.done
		}
	})
}

// Start opens a session and returns once it is active or failed to open.
// Starting while a session is not idle fails with [ErrSessionNotIdle].
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.submit(ctx, commandStart)
}

// End closes the active session and returns once the connection is closed.
// Ending without an active session fails with [ErrNoActiveSession].
func (o *Orchestrator) End(ctx context.Context) error {
	return o.submit(ctx, commandEnd)
}

// Toggle ends an active session or starts a new one.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	if o.Phase() == PhaseActive {
		return o.End(ctx)
	}
	return o.Start(ctx)
}

func (o *Orchestrator) Phase() Phase {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.phase
}

// TextContents returns the text streams of the current session in the order
// they were opened.
func (o *Orchestrator) TextContents() []TextContent {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	if o.session == nil {
		return nil
	}
	return o.session.contents.snapshot()
}

func (o *Orchestrator) TextContent(id string) (TextContent, bool) {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	if o.session == nil {
		return TextContent{}, false
	}
	text, ok := o.session.contents.texts[id]
	if !ok {
		return TextContent{}, false
	}
	return text.clone(), true
}

func (o *Orchestrator) PlaybackState() playback.State {
	return o.queue.State()
}

func (o *Orchestrator) isClosed() bool {
	select {
	case <-o.closeCh:
		return true
	default:
		return false
	}
}

type commandKind int

const (
	commandStart commandKind = iota
	commandEnd
)

type command struct {
	kind  commandKind
	ctx   context.Context
	reply chan error
}

func (o *Orchestrator) submit(ctx context.Context, kind commandKind) error {
	if o.isClosed() {
		return ErrOrchestratorClosed
	}
	if !o.started.Load() {
		return ErrNotOrchestrating
	}

	cmd := command{kind: kind, ctx: ctx, reply: make(chan error, 1)}
	select {
	case o.commands <- cmd:
	case <-o.done:
		return ErrOrchestratorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-o.done:
		return ErrOrchestratorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

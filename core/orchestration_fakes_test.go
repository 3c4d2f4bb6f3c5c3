package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-s2s/core/audio"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"github.com/koscakluka/ema-s2s/core/tools"
	"github.com/koscakluka/ema-s2s/core/transport"
)

const testTimeout = 2 * time.Second

type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closes  int
	closed  bool

	inbound chan transport.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan transport.Frame, 64)}
}

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return transport.ErrConnectionClosed
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Inbound() <-chan transport.Frame { return c.inbound }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.closed = true
	return nil
}

func (c *fakeConn) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentEvents(t *testing.T) []events.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	sent := make([]events.Event, 0, len(c.sent))
	for _, data := range c.sent {
		event, err := events.Parse(data)
		if err != nil {
			t.Fatalf("expected sent payload to parse, got %v", err)
		}
		sent = append(sent, event)
	}
	return sent
}

func (c *fakeConn) sentKinds(t *testing.T) []events.Kind {
	t.Helper()
	sent := c.sentEvents(t)
	kinds := make([]events.Kind, 0, len(sent))
	for _, event := range sent {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(context.Context) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatalf("expected a dialed connection")
	}
	return d.conns[len(d.conns)-1]
}

type fakeDevice struct {
	mu        sync.Mutex
	onSamples func([]float32)
	startErr  error
	starts    int
	stops     int
}

func (d *fakeDevice) StartCapture(_ context.Context, onSamples func([]float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	d.onSamples = onSamples
	return nil
}

func (d *fakeDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDevice) deliver(samples []float32) {
	d.mu.Lock()
	onSamples := d.onSamples
	d.mu.Unlock()
	if onSamples != nil {
		onSamples(samples)
	}
}

func (d *fakeDevice) stopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// fakeSink never finishes a chunk on its own.
type fakeSink struct {
	mu     sync.Mutex
	played []audio.PCM
	clears int
}

func (s *fakeSink) Play(pcm audio.PCM, _ func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, pcm)
	return nil
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSink) playedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

func (s *fakeSink) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

type harness struct {
	t            *testing.T
	orchestrator *Orchestrator
	dialer       *fakeDialer
	device       *fakeDevice
	sink         *fakeSink

	messages      chan events.Message
	texts         chan TextContent
	interruptions chan string
	toolCalls     chan string
	errs          chan error
	playback      chan playback.State
}

func newHarness(t *testing.T, opts ...OrchestratorOption) *harness {
	t.Helper()

	h := &harness{
		t:             t,
		dialer:        &fakeDialer{},
		device:        &fakeDevice{},
		sink:          &fakeSink{},
		messages:      make(chan events.Message, 1024),
		texts:         make(chan TextContent, 64),
		interruptions: make(chan string, 8),
		toolCalls:     make(chan string, 8),
		errs:          make(chan error, 16),
		playback:      make(chan playback.State, 16),
	}

	var ids atomic.Int64
	h.orchestrator = NewOrchestrator(append([]OrchestratorOption{
		WithTransport(h.dialer),
		WithCaptureDevice(h.device),
		WithPlaybackSink(h.sink),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }),
	}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		h.orchestrator.Close()
		cancel()
	})

	h.orchestrator.Orchestrate(ctx,
		WithEventCallback(func(msg events.Message) { offer(h.messages, msg) }),
		WithTextCallback(func(text TextContent) { offer(h.texts, text) }),
		WithInterruptionCallback(func(id string) { offer(h.interruptions, id) }),
		WithToolCallCallback(func(call tools.Call) { offer(h.toolCalls, call.ToolUseID) }),
		WithErrorCallback(func(err error) { offer(h.errs, err) }),
		WithPlaybackCallback(func(state playback.State) { offer(h.playback, state) }),
	)
	return h
}

func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
	}
}

func (h *harness) start() *fakeConn {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := h.orchestrator.Start(ctx); err != nil {
		h.t.Fatalf("expected session to start, got %v", err)
	}
	return h.dialer.last(h.t)
}

// receive feeds event to the session and returns once it was dispatched.
func (h *harness) receive(conn *fakeConn, event events.Event) {
	h.t.Helper()
	data, err := events.Marshal(event)
	if err != nil {
		h.t.Fatalf("expected event to marshal, got %v", err)
	}
	h.receiveRaw(conn, data)
}

func (h *harness) receiveRaw(conn *fakeConn, data []byte) events.Message {
	h.t.Helper()
	conn.inbound <- transport.Frame{Data: data, ReceivedAt: time.Now()}
	return h.awaitMessage(events.DirectionInbound, "")
}

// awaitMessage waits for the next message of direction, optionally of the
// given wire name.
func (h *harness) awaitMessage(direction events.Direction, name string) events.Message {
	h.t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case msg := <-h.messages:
			if msg.Direction == direction && (name == "" || msg.Name() == name) {
				return msg
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s message %q", direction, name)
		}
	}
}

func (h *harness) awaitError(target error) error {
	h.t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case err := <-h.errs:
			if target == nil || errors.Is(err, target) {
				return err
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for error %v", target)
		}
	}
}

func (h *harness) awaitPhase(phase Phase) {
	h.t.Helper()
	deadline := time.Now().Add(testTimeout)
	for h.orchestrator.Phase() != phase {
		if time.Now().After(deadline) {
			h.t.Fatalf("expected phase %s, got %s", phase, h.orchestrator.Phase())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func audioPayload(samples ...float32) string {
	return audio.Encode(samples)
}

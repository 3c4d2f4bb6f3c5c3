package orchestration

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/koscakluka/ema-s2s/core/audio"
	"github.com/koscakluka/ema-s2s/core/capture"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"github.com/koscakluka/ema-s2s/core/transport"
)

func TestStartBeforeOrchestrateFails(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	if err := o.Start(context.Background()); !errors.Is(err, ErrNotOrchestrating) {
		t.Fatalf("expected ErrNotOrchestrating, got %v", err)
	}
}

func TestCloseBeforeOrchestrateMarksClosed(t *testing.T) {
	o := NewOrchestrator()
	o.Close()

	o.Orchestrate(context.Background())
	if err := o.Start(context.Background()); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed, got %v", err)
	}
}

func TestStartSendsHandshakeInOrder(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	want := []events.Kind{
		events.KindSessionStart,
		events.KindPromptStart,
		events.KindContentStart,
		events.KindTextInput,
		events.KindContentEnd,
		events.KindContentStart,
	}
	if got := conn.sentKinds(t); !slices.Equal(got, want) {
		t.Fatalf("expected handshake %v, got %v", want, got)
	}

	sent := conn.sentEvents(t)
	if promptStart := sent[1].(events.PromptStart); promptStart.PromptName != "id-1" {
		t.Fatalf("expected prompt name id-1, got %q", promptStart.PromptName)
	}
	textStart := sent[2].(events.ContentStart)
	if textStart.ContentName != "id-2" || textStart.Type != events.ContentTypeText {
		t.Fatalf("expected text content id-2, got %+v", textStart)
	}
	systemPrompt := sent[3].(events.TextInput)
	if systemPrompt.Role != events.RoleSystem || systemPrompt.Content != events.DefaultSystemPrompt {
		t.Fatalf("expected default system prompt, got %+v", systemPrompt)
	}
	if end := sent[4].(events.ContentEnd); end.ContentName != "id-2" {
		t.Fatalf("expected system prompt content to end, got %+v", end)
	}
	audioStart := sent[5].(events.ContentStart)
	if audioStart.ContentName != "id-3" || audioStart.Type != events.ContentTypeAudio || audioStart.AudioInputConfiguration == nil {
		t.Fatalf("expected audio content id-3, got %+v", audioStart)
	}

	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected active session, got %s", phase)
	}

	samples := make([]float32, capture.DefaultBlockSize)
	h.device.deliver(samples)

	msg := h.awaitMessage(events.DirectionOutbound, string(events.KindAudioInput))
	input := msg.Event.(events.AudioInput)
	if input.PromptName != "id-1" || input.ContentName != "id-3" {
		t.Fatalf("expected audio input on id-1/id-3, got %s/%s", input.PromptName, input.ContentName)
	}
	if input.Content != audio.Encode(samples) {
		t.Fatalf("expected encoded block as payload")
	}
	if msg.Timestamp.IsZero() {
		t.Fatalf("expected message to be stamped when sent")
	}
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	h := newHarness(t)
	h.start()

	if err := h.orchestrator.Start(context.Background()); !errors.Is(err, ErrSessionNotIdle) {
		t.Fatalf("expected ErrSessionNotIdle, got %v", err)
	}
	h.awaitError(ErrSessionNotIdle)

	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected session to stay active, got %s", phase)
	}
	if len(h.dialer.conns) != 1 {
		t.Fatalf("expected a single connection, got %d", len(h.dialer.conns))
	}
}

func TestEndWithoutSessionIsRejected(t *testing.T) {
	h := newHarness(t)

	if err := h.orchestrator.End(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	h.awaitError(ErrNoActiveSession)
}

func TestEndRunsClosingHandshake(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.ContentStart{ContentID: "speech", Type: events.ContentTypeAudio, Role: events.RoleAssistant})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: audioPayload(0.1, 0.2)})
	h.receive(conn, events.ContentEnd{ContentID: "speech", Type: events.ContentTypeAudio})

	// Not a whole block, must never be sent.
	h.device.deliver(make([]float32, 100))

	if err := h.orchestrator.End(context.Background()); err != nil {
		t.Fatalf("expected session to end, got %v", err)
	}

	kinds := conn.sentKinds(t)
	if slices.Contains(kinds, events.KindAudioInput) {
		t.Fatalf("expected partial block to be discarded, got %v", kinds)
	}
	tail := kinds[len(kinds)-3:]
	want := []events.Kind{events.KindContentEnd, events.KindPromptEnd, events.KindSessionEnd}
	if !slices.Equal(tail, want) {
		t.Fatalf("expected closing sequence %v, got %v", want, tail)
	}
	sent := conn.sentEvents(t)
	if end := sent[len(sent)-3].(events.ContentEnd); end.ContentName != "id-3" {
		t.Fatalf("expected audio content to end, got %+v", end)
	}

	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
	if stops := h.device.stopCount(); stops != 1 {
		t.Fatalf("expected capture to stop once, got %d", stops)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", phase)
	}
	if clears := h.sink.clearCount(); clears != 0 {
		t.Fatalf("expected playback to continue after end, got %d clears", clears)
	}
	if state := h.orchestrator.PlaybackState(); state != playback.StatePlaying {
		t.Fatalf("expected playback to still be playing, got %s", state)
	}
}

func TestToggleStartsAndEnds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.orchestrator.Toggle(ctx); err != nil {
		t.Fatalf("expected toggle to start, got %v", err)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected active phase, got %s", phase)
	}
	if err := h.orchestrator.Toggle(ctx); err != nil {
		t.Fatalf("expected toggle to end, got %v", err)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", phase)
	}
}

func TestInterruptionCancelsPlayback(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.ContentStart{ContentID: "speech", Type: events.ContentTypeAudio, Role: events.RoleAssistant})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: audioPayload(0.1, 0.2, 0.3)})
	h.receive(conn, events.ContentEnd{ContentID: "speech", Type: events.ContentTypeAudio})
	if played := h.sink.playedCount(); played != 1 {
		t.Fatalf("expected audio to be submitted, got %d chunks", played)
	}

	h.receive(conn, events.ContentStart{ContentID: "marker", Type: events.ContentTypeText, Role: events.RoleAssistant})
	h.receive(conn, events.TextOutput{ContentID: "marker", Content: `{ "interrupted" : true }`, Role: events.RoleAssistant})

	select {
	case id := <-h.interruptions:
		if id != "marker" {
			t.Fatalf("expected interruption on marker, got %q", id)
		}
	default:
		t.Fatalf("expected interruption callback")
	}
	if clears := h.sink.clearCount(); clears != 1 {
		t.Fatalf("expected playback to be cleared once, got %d", clears)
	}
	if state := h.orchestrator.PlaybackState(); state != playback.StateIdle {
		t.Fatalf("expected idle playback, got %s", state)
	}
	text, ok := h.orchestrator.TextContent("marker")
	if !ok || !text.Interrupted {
		t.Fatalf("expected marker content to be flagged interrupted, got %+v", text)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected session to stay active, got %s", phase)
	}
}

func TestInterruptedAudioContentIsNotPlayed(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.ContentStart{ContentID: "speech", Type: events.ContentTypeAudio, Role: events.RoleAssistant})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: audioPayload(0.1, 0.2, 0.3)})
	h.receive(conn, events.ContentStart{ContentID: "marker", Type: events.ContentTypeText, Role: events.RoleAssistant})
	h.receive(conn, events.TextOutput{ContentID: "marker", Content: `{ "interrupted" : true }`, Role: events.RoleAssistant})
	h.receive(conn, events.ContentEnd{ContentID: "speech", Type: events.ContentTypeAudio, StopReason: events.StopReasonInterrupted})
	h.receive(conn, events.ContentEnd{ContentID: "speech", Type: events.ContentTypeAudio, StopReason: events.StopReasonEndTurn})

	if played := h.sink.playedCount(); played != 0 {
		t.Fatalf("expected interrupted audio to be discarded, got %d chunks", played)
	}
	if state := h.orchestrator.PlaybackState(); state != playback.StateIdle {
		t.Fatalf("expected idle playback, got %s", state)
	}

	h.receive(conn, events.ContentStart{ContentID: "next", Type: events.ContentTypeAudio, Role: events.RoleAssistant})
	h.receive(conn, events.AudioOutput{ContentID: "next", Content: audioPayload(0.4)})
	h.receive(conn, events.ContentEnd{ContentID: "next", Type: events.ContentTypeAudio, StopReason: events.StopReasonEndTurn})
	if played := h.sink.playedCount(); played != 1 {
		t.Fatalf("expected the following reply to play, got %d chunks", played)
	}
}

func TestTextThatIsNotAMarkerDoesNotCancel(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.ContentStart{ContentID: "speech", Type: events.ContentTypeAudio})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: audioPayload(0.5)})
	h.receive(conn, events.ContentEnd{ContentID: "speech"})

	h.receive(conn, events.ContentStart{ContentID: "reply", Type: events.ContentTypeText, Role: events.RoleAssistant})
	h.receive(conn, events.ContentStart{ContentID: "transcript", Type: events.ContentTypeText, Role: events.RoleUser})

	for _, output := range []events.TextOutput{
		{ContentID: "reply", Content: `{"interrupted": false}`, Role: events.RoleAssistant},
		{ContentID: "reply", Content: `{"note": "interrupted"}`, Role: events.RoleAssistant},
		{ContentID: "reply", Content: `interrupted: true`, Role: events.RoleAssistant},
		{ContentID: "transcript", Content: `{"interrupted": true}`, Role: events.RoleUser},
	} {
		h.receive(conn, output)
	}

	if clears := h.sink.clearCount(); clears != 0 {
		t.Fatalf("expected no cancellation, got %d clears", clears)
	}
	select {
	case id := <-h.interruptions:
		t.Fatalf("expected no interruption, got one on %q", id)
	default:
	}
}

func TestUnknownContentIDIsIgnored(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.AudioOutput{ContentID: "ghost", Content: audioPayload(0.1)})
	h.receive(conn, events.TextOutput{ContentID: "ghost", Content: "boo", Role: events.RoleAssistant})
	h.receive(conn, events.ContentEnd{ContentID: "ghost"})

	if played := h.sink.playedCount(); played != 0 {
		t.Fatalf("expected nothing to play, got %d chunks", played)
	}
	if texts := h.orchestrator.TextContents(); len(texts) != 0 {
		t.Fatalf("expected no text contents, got %+v", texts)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected session to stay active, got %s", phase)
	}
	select {
	case err := <-h.errs:
		t.Fatalf("expected no error, got %v", err)
	default:
	}
}

func TestTextTurnIsFrozenOnContentEnd(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.ContentStart{ContentID: "A", Type: events.ContentTypeText, Role: events.RoleAssistant})
	h.receive(conn, events.TextOutput{ContentID: "A", Content: "Hi", Role: events.RoleAssistant})
	h.receive(conn, events.ContentEnd{ContentID: "A", Type: events.ContentTypeText, StopReason: "END_TURN"})
	h.receive(conn, events.TextOutput{ContentID: "A", Content: "ignored", Role: events.RoleAssistant})
	h.receive(conn, events.ContentEnd{ContentID: "A", Type: events.ContentTypeText, StopReason: "INTERRUPTED"})

	texts := h.orchestrator.TextContents()
	if len(texts) != 1 {
		t.Fatalf("expected one text content, got %d", len(texts))
	}
	text := texts[0]
	if text.ID != "A" || text.Content != "Hi" || text.StopReason != "END_TURN" || !text.Frozen {
		t.Fatalf("expected frozen \"Hi\" with END_TURN, got %+v", text)
	}
	if text.Role != events.RoleAssistant {
		t.Fatalf("expected assistant role, got %s", text.Role)
	}
	if len(text.Events) != 3 {
		t.Fatalf("expected start, output and end events, got %d", len(text.Events))
	}
}

func TestRepeatedAudioContentEndFlushesOnce(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	payload := audioPayload(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)
	h.receive(conn, events.ContentStart{ContentID: "speech", Type: events.ContentTypeAudio})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: payload[:8]})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: payload[8:]})
	h.receive(conn, events.ContentEnd{ContentID: "speech"})
	h.receive(conn, events.ContentEnd{ContentID: "speech"})

	if played := h.sink.playedCount(); played != 1 {
		t.Fatalf("expected one chunk, got %d", played)
	}
	h.sink.mu.Lock()
	samples := len(h.sink.played[0])
	h.sink.mu.Unlock()
	if samples != 6 {
		t.Fatalf("expected the concatenated payload to decode to 6 samples, got %d", samples)
	}
}

func TestDecodeFaultIsReported(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.receive(conn, events.ContentStart{ContentID: "speech", Type: events.ContentTypeAudio})
	h.receive(conn, events.AudioOutput{ContentID: "speech", Content: "!!!!"})
	h.receive(conn, events.ContentEnd{ContentID: "speech"})

	h.awaitError(audio.ErrMalformedAudio)
	if played := h.sink.playedCount(); played != 0 {
		t.Fatalf("expected nothing to play, got %d chunks", played)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected session to stay active, got %s", phase)
	}
}

func TestMalformedInboundIsObservedAsUnknown(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	msg := h.receiveRaw(conn, []byte(`{"event":`))
	unknown, ok := msg.Event.(events.Unknown)
	if !ok {
		t.Fatalf("expected unknown event, got %T", msg.Event)
	}
	if msg.Name() != malformedEventName || string(unknown.Payload) != `{"event":` {
		t.Fatalf("expected raw payload to be kept, got %q %q", msg.Name(), unknown.Payload)
	}

	msg = h.receiveRaw(conn, []byte(`{"event":{"usageEvent":{"tokens":3}}}`))
	if msg.Name() != "usageEvent" {
		t.Fatalf("expected unknown tag to be kept, got %q", msg.Name())
	}
	if phase := h.orchestrator.Phase(); phase != PhaseActive {
		t.Fatalf("expected session to stay active, got %s", phase)
	}
}

func TestCaptureFailureLeavesSessionIdle(t *testing.T) {
	h := newHarness(t)
	h.device.startErr = errors.New("no microphone")

	err := h.orchestrator.Start(context.Background())
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}

	conn := h.dialer.last(t)
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
	if kinds := conn.sentKinds(t); slices.Contains(kinds, events.KindSessionEnd) {
		t.Fatalf("expected no closing handshake, got %v", kinds)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", phase)
	}
	h.awaitError(capture.ErrDeviceUnavailable)
}

func TestDialFailureLeavesSessionIdle(t *testing.T) {
	dialErr := errors.New("connection refused")
	h := newHarness(t)
	h.dialer.err = dialErr

	if err := h.orchestrator.Start(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
	if phase := h.orchestrator.Phase(); phase != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", phase)
	}
}

func TestStartWithoutTransportFails(t *testing.T) {
	h := newHarness(t, WithTransport(nil))

	if err := h.orchestrator.Start(context.Background()); !errors.Is(err, ErrNoTransport) {
		t.Fatalf("expected ErrNoTransport, got %v", err)
	}
}

func TestTransportFaultReturnsToIdle(t *testing.T) {
	tests := []struct {
		name  string
		fault func(conn *fakeConn)
	}{
		{
			name: "error frame",
			fault: func(conn *fakeConn) {
				conn.inbound <- transport.Frame{Err: transport.ErrConnectionClosed}
			},
		},
		{
			name:  "closed stream",
			fault: func(conn *fakeConn) { close(conn.inbound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			conn := h.start()

			tt.fault(conn)
			h.awaitError(transport.ErrConnectionClosed)
			h.awaitPhase(PhaseIdle)

			if !conn.isClosed() {
				t.Fatalf("expected connection to be closed")
			}
			if stops := h.device.stopCount(); stops != 1 {
				t.Fatalf("expected capture to stop, got %d stops", stops)
			}

			h.start()
			if len(h.dialer.conns) != 2 {
				t.Fatalf("expected a fresh connection, got %d", len(h.dialer.conns))
			}
		})
	}
}

func TestSendFailureWhileActiveReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	conn.failSends(errors.New("broken pipe"))
	h.device.deliver(make([]float32, capture.DefaultBlockSize))

	h.awaitError(nil)
	h.awaitPhase(PhaseIdle)
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
}

func TestCloseEndsActiveSession(t *testing.T) {
	h := newHarness(t)
	conn := h.start()

	h.orchestrator.Close()

	kinds := conn.sentKinds(t)
	if kinds[len(kinds)-1] != events.KindSessionEnd {
		t.Fatalf("expected session end to be sent, got %v", kinds)
	}
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
	if err := h.orchestrator.Start(context.Background()); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed, got %v", err)
	}
}

func TestPhaseCallbackFollowsLifecycle(t *testing.T) {
	phases := make(chan Phase, 16)
	o := NewOrchestrator(
		WithTransport(&fakeDialer{}),
		WithCaptureDevice(&fakeDevice{}),
	)
	defer o.Close()
	o.Orchestrate(context.Background(), WithPhaseCallback(func(phase Phase) { offer(phases, phase) }))

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected session to start, got %v", err)
	}
	if err := o.End(context.Background()); err != nil {
		t.Fatalf("expected session to end, got %v", err)
	}

	want := []Phase{PhaseOpening, PhaseActive, PhaseClosing, PhaseIdle}
	for _, expected := range want {
		select {
		case phase := <-phases:
			if phase != expected {
				t.Fatalf("expected phase %s, got %s", expected, phase)
			}
		default:
			t.Fatalf("expected phase %s, got none", expected)
		}
	}
}

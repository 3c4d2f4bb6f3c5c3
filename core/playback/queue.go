// Package playback plays decoded audio chunks strictly in arrival order.
//
// A [Queue] keeps a small window of chunks submitted to its [Sink] so the
// device always holds the next chunk before the current one drains. The
// sink reports each finished chunk, and the owner of the queue hands the
// resulting [Completion] back with [Queue.Advance]. Reports made before a
// [Queue.Cancel] belong to an older generation and are ignored.
package playback

import (
	"context"
	"sync"

	"github.com/koscakluka/ema-s2s/core/audio"
)

const (
	DefaultLookahead        = 2
	defaultCompletionBuffer = 64
)

// Sink is an audio output device.
type Sink interface {
	// Play appends pcm to the device buffer and calls onPlayed once the last
	// sample of it has been played. onPlayed may be called from any
	// goroutine, and is never called for audio removed by Clear.
	Play(pcm audio.PCM, onPlayed func()) error
	// Clear drops everything buffered on the device.
	Clear()
}

type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

type Chunk struct {
	Seq uint64
	PCM audio.PCM
}

// Completion reports that the sink finished playing the chunk Seq.
type Completion struct {
	Seq        uint64
	generation uint64
}

type Queue struct {
	mu sync.Mutex

	sink      Sink
	lookahead int

	pending  []Chunk
	inFlight []Chunk
	nextSeq  uint64

	generation  uint64
	completions chan Completion
	done        chan struct{}
	closeOnce   sync.Once

	state         State
	onStateChange func(State)
}

type QueueOption func(*Queue)

// WithLookahead sets how many chunks are handed to the sink ahead of
// playback. Values below one are ignored.
func WithLookahead(chunks int) QueueOption {
	return func(q *Queue) {
		if chunks > 0 {
			q.lookahead = chunks
		}
	}
}

func WithStateCallback(callback func(State)) QueueOption {
	return func(q *Queue) {
		q.onStateChange = callback
	}
}

// NewQueue creates an idle queue playing into sink. A nil sink discards
// audio and reports every chunk as played right away.
func NewQueue(sink Sink, opts ...QueueOption) *Queue {
	if sink == nil {
		sink = discardSink{}
	}

	q := &Queue{
		sink:        sink,
		lookahead:   DefaultLookahead,
		completions: make(chan Completion, defaultCompletionBuffer),
		done:        make(chan struct{}),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends pcm to the queue and returns its sequence number. If
// nothing is playing, playback starts immediately.
func (q *Queue) Enqueue(pcm audio.PCM) uint64 {
	q.mu.Lock()
	seq := q.nextSeq
	q.nextSeq++
	q.pending = append(q.pending, Chunk{Seq: seq, PCM: pcm})
	q.fillLocked()
	changed := q.updateStateLocked()
	q.mu.Unlock()

	q.notifyState(changed)
	return seq
}

// Advance accounts for a finished chunk and submits the next ones. Stale
// or unknown completions are ignored.
func (q *Queue) Advance(completion Completion) {
	q.mu.Lock()
	if completion.generation != q.generation {
		q.mu.Unlock()
		return
	}

	played := -1
	for i, chunk := range q.inFlight {
		if chunk.Seq == completion.Seq {
			played = i
			break
		}
	}
	if played < 0 {
		q.mu.Unlock()
		return
	}

	chunksPlayed.Add(context.Background(), int64(played+1))
	q.inFlight = q.inFlight[played+1:]
	q.fillLocked()
	changed := q.updateStateLocked()
	q.mu.Unlock()

	q.notifyState(changed)
}

// Cancel stops playback, drops every queued and submitted chunk and returns
// the queue to idle. Cancelling an idle queue does nothing.
func (q *Queue) Cancel() {
	q.mu.Lock()
	if len(q.pending) == 0 && len(q.inFlight) == 0 {
		q.mu.Unlock()
		return
	}

	chunksCancelled.Add(context.Background(), int64(len(q.pending)+len(q.inFlight)))
	q.generation++
	q.pending = nil
	q.inFlight = nil
	q.sink.Clear()
	changed := q.updateStateLocked()
	q.mu.Unlock()

	q.notifyState(changed)
}

// Close releases reports still waiting for a full Completions channel.
// Reports made after Close are discarded.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Len returns the number of chunks not yet reported as played.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.inFlight)
}

// Completions delivers chunk-finished reports, to be passed to Advance.
func (q *Queue) Completions() <-chan Completion {
	return q.completions
}

func (q *Queue) fillLocked() {
	for len(q.inFlight) < q.lookahead && len(q.pending) > 0 {
		chunk := q.pending[0]
		q.pending = q.pending[1:]

		completion := Completion{Seq: chunk.Seq, generation: q.generation}
		// The chunk is in flight before Play returns since a sink may report
		// it played synchronously.
		q.inFlight = append(q.inFlight, chunk)
		if err := q.sink.Play(chunk.PCM, func() { q.complete(completion) }); err != nil {
			logger.Warn("dropping chunk the sink refused", "seq", chunk.Seq, "error", err)
			q.inFlight = q.inFlight[:len(q.inFlight)-1]
		}
	}
}

func (q *Queue) complete(completion Completion) {
	select {
	case q.completions <- completion:
	case <-q.done:
	default:
		go func() {
			select {
			case q.completions <- completion:
			case <-q.done:
			}
		}()
	}
}

func (q *Queue) updateStateLocked() (changed bool) {
	state := StateIdle
	if len(q.pending) > 0 || len(q.inFlight) > 0 {
		state = StatePlaying
	}
	if state == q.state {
		return false
	}
	q.state = state
	return true
}

func (q *Queue) notifyState(changed bool) {
	if !changed || q.onStateChange == nil {
		return
	}
	q.onStateChange(q.State())
}

type discardSink struct{}

func (discardSink) Play(_ audio.PCM, onPlayed func()) error {
	onPlayed()
	return nil
}

func (discardSink) Clear() {}

// Package portaudio plays and captures audio through PortAudio blocking
// streams.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-s2s/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-s2s/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

const DefaultFramesPerBuffer = 512

var ErrClosed = errors.New("portaudio client closed")

// Client owns an input stream at the capture rate and an output stream at
// the playback rate. It is both a capture.Device and a playback.Sink.
type Client struct {
	input  *portaudio.Stream
	output *portaudio.Stream
	in     []float32
	out    []int16

	captureMu     sync.Mutex
	captureCancel context.CancelFunc
	captureDone   chan struct{}

	playMu   sync.Mutex
	playCond *sync.Cond
	pending  []int16
	marks    []playbackMark
	closed   bool
	played   chan struct{}
}

type playbackMark struct {
	position int
	callback func()
}

func NewClient(framesPerBuffer int) (*Client, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	c := &Client{
		in:     make([]float32, framesPerBuffer),
		out:    make([]int16, framesPerBuffer),
		played: make(chan struct{}),
	}
	c.playCond = sync.NewCond(&c.playMu)

	var err error
	c.input, err = portaudio.OpenDefaultStream(audio.DefaultChannels, 0, audio.DefaultSampleRate, framesPerBuffer, c.in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	c.output, err = portaudio.OpenDefaultStream(0, audio.DefaultChannels, audio.DefaultOutputSampleRate, framesPerBuffer, c.out)
	if err != nil {
		c.input.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := c.output.Start(); err != nil {
		c.input.Close()
		c.output.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	go c.playbackLoop()
	return c, nil
}

// StartCapture reads the input stream on its own goroutine until
// StopCapture or ctx is done.
func (c *Client) StartCapture(ctx context.Context, onSamples func(samples []float32)) error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.captureCancel != nil {
		return nil
	}

	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.captureCancel = cancel
	c.captureDone = done

	go func() {
		defer close(done)
		for ctx.Err() == nil {
			if err := c.input.Read(); err != nil {
				logger.Debug("failed to read input stream", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			onSamples(append([]float32(nil), c.in...))
		}
	}()
	return nil
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.captureCancel == nil {
		return nil
	}

	c.captureCancel()
	<-c.captureDone
	c.captureCancel = nil
	c.captureDone = nil

	if err := c.input.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// Play appends pcm behind what is still pending. onPlayed runs once the
// last sample was written to the output stream.
func (c *Client) Play(pcm audio.PCM, onPlayed func()) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.pending = append(c.pending, pcm...)
	c.marks = append(c.marks, playbackMark{position: len(c.pending), callback: onPlayed})
	c.playCond.Signal()
	return nil
}

func (c *Client) Clear() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	c.pending = nil
	c.marks = nil
}

func (c *Client) playbackLoop() {
	defer close(c.played)

	for {
		c.playMu.Lock()
		for len(c.pending) == 0 && !c.closed {
			c.playCond.Wait()
		}
		if c.closed {
			c.playMu.Unlock()
			return
		}

		n := copy(c.out, c.pending)
		clear(c.out[n:])
		c.pending = c.pending[n:]
		passed := c.advanceMarksLocked(n)
		c.playMu.Unlock()

		if err := c.output.Write(); err != nil {
			logger.Debug("failed to write output stream", "error", err)
		}
		for _, mark := range passed {
			if mark.callback != nil {
				mark.callback()
			}
		}
	}
}

func (c *Client) advanceMarksLocked(consumed int) []playbackMark {
	passed := 0
	for i := range c.marks {
		c.marks[i].position -= consumed
		if c.marks[i].position <= 0 {
			passed++
		}
	}
	if passed == 0 {
		return nil
	}

	done := c.marks[:passed:passed]
	c.marks = c.marks[passed:]
	return done
}

func (c *Client) InputEncoding() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *Client) OutputEncoding() audio.EncodingInfo {
	return audio.GetDefaultOutputEncodingInfo()
}

func (c *Client) Close() {
	_ = c.StopCapture()

	c.playMu.Lock()
	c.closed = true
	c.pending = nil
	c.marks = nil
	c.playCond.Broadcast()
	c.playMu.Unlock()
	<-c.played

	_ = c.output.Stop()
	_ = c.input.Close()
	_ = c.output.Close()
	_ = portaudio.Terminate()
}

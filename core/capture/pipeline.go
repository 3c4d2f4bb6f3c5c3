// Package capture turns a microphone sample stream into fixed size, wire
// encoded blocks.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-s2s/core/audio"
)

const (
	DefaultBlockSize  = 512
	defaultBufferSize = 32
)

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrAlreadyCapturing  = errors.New("capture already running")
)

// Device is a mono microphone running at the input profile sample rate.
type Device interface {
	// StartCapture begins delivering samples in [-1, 1] to onSamples until
	// StopCapture is called or ctx is done. The slice passed to onSamples is
	// only valid for the duration of the call.
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
}

type Block struct {
	Seq     uint64
	Samples []float32
	// Payload is Samples as wire encoded PCM.
	Payload string
}

type Pipeline struct {
	mu sync.Mutex

	device     Device
	blockSize  int
	bufferSize int

	running bool
	out     chan Block
	partial []float32
	seq     uint64
}

type PipelineOption func(*Pipeline)

func WithBlockSize(samples int) PipelineOption {
	return func(p *Pipeline) {
		if samples > 0 {
			p.blockSize = samples
		}
	}
}

// WithBufferSize sets how many blocks may wait for the consumer before new
// ones are dropped.
func WithBufferSize(blocks int) PipelineOption {
	return func(p *Pipeline) {
		if blocks > 0 {
			p.bufferSize = blocks
		}
	}
}

func NewPipeline(device Device, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		device:     device,
		blockSize:  DefaultBlockSize,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start acquires the device and returns the block stream. The stream is
// closed by Stop. A pipeline can be started again after it was stopped.
func (p *Pipeline) Start(ctx context.Context) (<-chan Block, error) {
	if p.device == nil {
		return nil, fmt.Errorf("%w: no device configured", ErrDeviceUnavailable)
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrAlreadyCapturing
	}
	out := make(chan Block, p.bufferSize)
	p.out = out
	p.partial = make([]float32, 0, p.blockSize)
	p.seq = 0
	p.running = true
	p.mu.Unlock()

	if err := p.device.StartCapture(ctx, p.onSamples); err != nil {
		p.mu.Lock()
		p.running = false
		p.out = nil
		p.partial = nil
		p.mu.Unlock()
		close(out)
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	return out, nil
}

// Stop releases the device right away. Samples that did not fill a whole
// block are discarded. Stopping a stopped pipeline does nothing.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.partial = nil
	close(p.out)
	p.out = nil
	p.mu.Unlock()

	if err := p.device.StopCapture(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) onSamples(samples []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	for len(samples) > 0 {
		n := min(p.blockSize-len(p.partial), len(samples))
		p.partial = append(p.partial, samples[:n]...)
		samples = samples[n:]
		if len(p.partial) < p.blockSize {
			return
		}

		block := Block{
			Seq:     p.seq,
			Samples: p.partial,
			Payload: audio.Encode(p.partial),
		}
		p.seq++
		p.partial = make([]float32, 0, p.blockSize)

		select {
		case p.out <- block:
		default:
			blocksDropped.Add(context.Background(), 1)
			logger.Debug("dropping capture block", "seq", block.Seq)
		}
	}
}

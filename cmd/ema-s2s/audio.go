package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-s2s/core/audio"
	"github.com/koscakluka/ema-s2s/core/audio/miniaudio"
	"github.com/koscakluka/ema-s2s/core/audio/portaudio"
	"github.com/koscakluka/ema-s2s/internal/config"
)

// audioBackend is a microphone and a speaker behind one device handle.
type audioBackend interface {
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
	Play(pcm audio.PCM, onPlayed func()) error
	Clear()
	InputEncoding() audio.EncodingInfo
	OutputEncoding() audio.EncodingInfo
	Close()
}

func openAudio(name string) (audioBackend, error) {
	switch strings.ToLower(name) {
	case config.BackendMiniaudio, "":
		return miniaudio.NewClient()
	case config.BackendPortaudio:
		return portaudio.NewClient(portaudio.DefaultFramesPerBuffer)
	case config.BackendNone:
		return silentAudio{}, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}

// silentAudio captures nothing and finishes every chunk right away.
type silentAudio struct{}

func (silentAudio) StartCapture(context.Context, func([]float32)) error { return nil }

func (silentAudio) StopCapture() error { return nil }

func (silentAudio) Play(_ audio.PCM, onPlayed func()) error {
	onPlayed()
	return nil
}

func (silentAudio) Clear() {}

func (silentAudio) InputEncoding() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (silentAudio) OutputEncoding() audio.EncodingInfo { return audio.GetDefaultOutputEncodingInfo() }

func (silentAudio) Close() {}

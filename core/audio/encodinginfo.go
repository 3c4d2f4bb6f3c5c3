package audio

import "time"

const (
	DefaultSampleRate       = 16000
	DefaultOutputSampleRate = 24000
	DefaultBitDepth         = 16
	DefaultChannels         = 1
	DefaultFormat           = "linear16"
)

// GetDefaultEncodingInfo returns the capture profile the remote service
// expects for microphone input.
func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{
		SampleRate: DefaultSampleRate,
		BitDepth:   DefaultBitDepth,
		Channels:   DefaultChannels,
		Format:     EncodingLinear16,
	}
}

// GetDefaultOutputEncodingInfo returns the profile synthesized speech is
// delivered in.
func GetDefaultOutputEncodingInfo() EncodingInfo {
	return EncodingInfo{
		SampleRate: DefaultOutputSampleRate,
		BitDepth:   DefaultBitDepth,
		Channels:   DefaultChannels,
		Format:     EncodingLinear16,
	}
}

type EncodingInfo struct {
	SampleRate int
	BitDepth   int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// BytesPerFrame is the size of one sample across all channels.
func (e EncodingInfo) BytesPerFrame() int {
	channels := e.Channels
	if channels == 0 {
		channels = 1
	}
	return e.Format.ByteSize() * channels
}

// Duration returns how long n bytes of audio in this profile play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	if e.SampleRate == 0 || e.BytesPerFrame() <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(e.BytesPerFrame()) / float64(e.SampleRate) * float64(time.Second))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	}
	return -1
}

const EncodingLinear16 encodingFormat = "linear16"

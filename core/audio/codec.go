package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrMalformedAudio = errors.New("malformed audio payload")

// PCM is a buffer of signed 16-bit linear samples, the format both the
// capture and the playback side of the wire use.
type PCM []int16

// Bytes packs the samples little-endian, ready for a playback device.
func (p PCM) Bytes() []byte {
	buf := make([]byte, len(p)*2)
	for i, sample := range p {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

// Duration returns the nominal playback time of the buffer for a mono
// stream at sampleRate.
func (p PCM) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p)) * time.Second / time.Duration(sampleRate)
}

// Quantize converts a float sample in [-1, 1] to int16.
//
// The sample is scaled by 32767 and rounded half away from zero
// ([math.Round]). Out of range values saturate at -32768 and 32767, NaN
// maps to silence.
func Quantize(sample float32) int16 {
	if sample != sample {
		return 0
	}

	scaled := math.Round(float64(sample) * math.MaxInt16)
	switch {
	case scaled > math.MaxInt16:
		return math.MaxInt16
	case scaled < math.MinInt16:
		return math.MinInt16
	}
	return int16(scaled)
}

// Encode quantizes samples and returns them as base64 of little-endian
// 16-bit PCM.
func Encode(samples []float32) string {
	buf := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(Quantize(sample)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Decode is the inverse of [Encode]. Invalid base64 or a payload that does
// not contain whole samples yields [ErrMalformedAudio].
func Decode(payload string) (PCM, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAudio, err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte length %d", ErrMalformedAudio, len(raw))
	}

	pcm := make(PCM, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return pcm, nil
}

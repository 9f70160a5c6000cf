// Package pcm handles raw little-endian 16-bit PCM audio: format math
// (samples, bytes, durations) and chunked writers used on the capture path.
package pcm

import (
	"fmt"
	"time"
)

// Format describes a linear PCM16 stream: sample rate and channel count.
// Bit depth is fixed at 16 bits, little-endian.
type Format struct {
	Rate     int // samples per second
	Channels int
}

// Common formats.
var (
	L16Mono16K = Format{Rate: 16000, Channels: 1}
	L16Mono24K = Format{Rate: 24000, Channels: 1}
	L16Mono48K = Format{Rate: 48000, Channels: 1}
)

// Depth is the bit depth of all formats in this package.
const Depth = 16

// BytesPerSample is the byte width of a single sample across all channels.
func (f Format) BytesPerSample() int {
	return f.Channels * Depth / 8
}

// Samples returns the number of samples represented by n bytes.
func (f Format) Samples(n int) int {
	return n / f.BytesPerSample()
}

// Bytes returns the byte length of n samples.
func (f Format) Bytes(n int) int {
	return n * f.BytesPerSample()
}

// BytesInDuration returns the byte length of d worth of audio.
func (f Format) BytesInDuration(d time.Duration) int {
	samples := int(time.Duration(f.Rate) * d / time.Second)
	return f.Bytes(samples)
}

// Duration returns the play time of n bytes of audio.
func (f Format) Duration(n int) time.Duration {
	return time.Duration(f.Samples(n)) * time.Second / time.Duration(f.Rate)
}

// BytesRate returns the stream rate in bytes per second.
func (f Format) BytesRate() int {
	return f.Rate * f.BytesPerSample()
}

// Silence returns a zeroed sample block of duration d.
func (f Format) Silence(d time.Duration) []byte {
	return make([]byte, f.BytesInDuration(d))
}

// String returns the MIME-style description of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.Rate, f.Channels)
}

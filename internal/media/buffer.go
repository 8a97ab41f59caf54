// Package media provides the decoded audio buffer type and WAV decoding.
package media

import (
	"time"
	"unsafe"
)

// Buffer is a decoded, in-memory unit of audio content. Samples are
// normalized float32 PCM in [-1, 1], interleaved when multi-channel.
// The coordinator treats it as opaque and never mutates it after delivery.
type Buffer struct {
	ContentID   string
	Data        []float32
	SampleRate  int
	NumChannels int
	BitDepth    int
	DecodedAt   time.Time
}

// Samples returns the number of per-channel sample frames in the buffer.
func (b *Buffer) Samples() int {
	if b.NumChannels == 0 {
		return 0
	}
	return len(b.Data) / b.NumChannels
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Samples()) / float64(b.SampleRate) * float64(time.Second))
}

// EstimateSize estimates the memory size of the buffer in bytes.
func (b *Buffer) EstimateSize() int {
	return int(unsafe.Sizeof(*b)) + len(b.ContentID) + len(b.Data)*4
}

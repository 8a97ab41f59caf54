package media

import (
	"bytes"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/audioload/internal/errors"
)

// pcmReadChunk is the per-iteration decode buffer size in samples.
const pcmReadChunk = 65536

// getAudioDivisor returns the normalization divisor for a PCM bit depth.
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported bit depth: %d", bitDepth).
			Category(errors.CategoryAudioDecode).
			Component("media").
			Build()
	}
}

// DecodeWAV decodes WAV bytes into a normalized float32 Buffer.
func DecodeWAV(contentID string, data []byte) (*Buffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, errors.Newf("invalid WAV file format").
			Category(errors.CategoryAudioDecode).
			Component("media").
			Context("content_id", contentID).
			Build()
	}

	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return nil, errors.Newf("unsupported number of channels: %d", decoder.NumChans).
			Category(errors.CategoryAudioDecode).
			Component("media").
			Context("content_id", contentID).
			Build()
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, pcmReadChunk),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: int(decoder.NumChans)},
	}

	var samples []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.Newf("failed to decode PCM data: %w", err).
				Category(errors.CategoryAudioDecode).
				Component("media").
				Context("content_id", contentID).
				Build()
		}
		if n == 0 {
			break
		}
		for _, sample := range buf.Data[:n] {
			samples = append(samples, float32(sample)/divisor)
		}
	}

	if len(samples) == 0 {
		return nil, errors.Newf("WAV file contains no audio data").
			Category(errors.CategoryAudioDecode).
			Component("media").
			Context("content_id", contentID).
			Build()
	}

	return &Buffer{
		ContentID:   contentID,
		Data:        samples,
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
		DecodedAt:   time.Now(),
	}, nil
}

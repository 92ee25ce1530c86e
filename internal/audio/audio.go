// Package audio implements the audio capture and encode side channel that
// joins C5 (output) when a muxer carries an audio stream: PulseAudio
// monitor capture feeding an Opus or AAC elementary-stream encoder.
package audio

import (
	"time"

	"waycast/internal/config"
	"waycast/internal/model"
)

// captureTimeout matches the video capture stage's next-frame timeout:
// a missed tick is non-fatal and the caller should retry.
const captureTimeout = 100 * time.Millisecond

// Capture pulls raw PCM audio frames from the system mixer.
type Capture interface {
	Start() error
	Stop() error
	NextFrame() (model.AudioFrame, error)
	IsActive() bool
}

// New constructs the platform audio capture for cfg. Currently the only
// source is the default sink's monitor, matching original_source's scope.
func New(cfg config.CaptureConfig) (Capture, error) {
	return newPulseCapture(cfg)
}

// Encoder turns raw PCM frames into an elementary audio stream, mirroring
// the video Encoder contract: lazy init, per-frame encode, a final flush,
// and one-shot AudioParams once the codec is known.
type Encoder interface {
	Encode(frame model.AudioFrame) (*model.AudioPacket, error)
	Flush() ([]model.AudioPacket, error)
	Params() *model.AudioParams
	Close()
}

// NewEncoder constructs an audio Encoder for the requested codec.
func NewEncoder(codec model.AudioCodecKind, sampleRate int, channels model.ChannelLayout, bitrateBPS int64) (Encoder, error) {
	switch codec {
	case model.AudioCodecAAC:
		return newAACEncoder(sampleRate, channels, bitrateBPS)
	default:
		return newOpusEncoder(sampleRate, channels, bitrateBPS)
	}
}

//go:build !linux

package audio

import (
	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// newPulseCapture has no non-Linux implementation: PulseAudio monitor
// capture is a Linux desktop-session concept in this build.
func newPulseCapture(config.CaptureConfig) (*pulseCapture, error) {
	return nil, werrors.Newf(werrors.KindAudioCapture, "audio: pulseaudio capture is only supported on linux")
}

type pulseCapture struct{}

func (*pulseCapture) Start() error                         { return werrors.ErrNoCaptureSource }
func (*pulseCapture) Stop() error                           { return nil }
func (*pulseCapture) NextFrame() (model.AudioFrame, error)  { return model.AudioFrame{}, werrors.ErrCaptureEnded }
func (*pulseCapture) IsActive() bool                        { return false }

var _ Capture = (*pulseCapture)(nil)

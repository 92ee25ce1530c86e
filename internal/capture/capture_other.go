//go:build !linux

package capture

import (
	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// newPortalCapture and newPipeWireCapture have no non-Linux implementation:
// both xdg-desktop-portal ScreenCast and PipeWire are Linux desktop-session
// concepts with no macOS/Windows equivalent wired into this build.

func newPortalCapture(config.CaptureConfig) (Capture, error) {
	return nil, werrors.Newf(werrors.KindPortal, "capture: portal backend is only supported on linux")
}

func newPipeWireCapture(config.CaptureConfig, *pipeWireTarget) (*pipeWireCapture, error) {
	return nil, werrors.Newf(werrors.KindPipeWire, "capture: pipewire backend is only supported on linux")
}

type pipeWireTarget struct {
	nodeID   uint32
	remoteFD int
}

type pipeWireCapture struct{}

func (pipeWireCapture) Start() error                    { return werrors.ErrNoCaptureSource }
func (pipeWireCapture) Stop() error                      { return nil }
func (pipeWireCapture) NextFrame() (model.Frame, error)  { return model.Frame{}, werrors.ErrCaptureEnded }
func (pipeWireCapture) IsActive() bool                   { return false }
func (pipeWireCapture) Resolution() model.Resolution     { return model.Resolution{} }
func (pipeWireCapture) Framerate() model.Framerate       { return model.Framerate{} }

var _ Capture = (*pipeWireCapture)(nil)

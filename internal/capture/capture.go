// Package capture implements the screen capture stage (C2): a portal or
// direct PipeWire session that delivers raw video frames over a bounded
// channel.
package capture

import (
	"log"
	"os"
	"time"

	"waycast/internal/config"
	"waycast/internal/model"
)

// frameTimeout is how long NextFrame waits for a delivery before returning
// a Timeout error.
const frameTimeout = 100 * time.Millisecond

var logger = log.New(os.Stderr, "[capture] ", log.LstdFlags)

// Capture is the polymorphic contract every capture backend implements.
// Start is idempotent on an already-started session.
type Capture interface {
	Start() error
	Stop() error
	NextFrame() (model.Frame, error)
	IsActive() bool
	Resolution() model.Resolution
	Framerate() model.Framerate
}

// New selects and constructs a Capture backend for cfg.Backend. BackendAuto
// resolves to Portal on every supported platform today; WlrExport
// substitutes Portal (and logs the substitution) since no wlroots DMA-BUF
// export binding is wired into this build.
func New(cfg config.CaptureConfig) (Capture, error) {
	switch cfg.Backend {
	case config.BackendPipeWire:
		return newPipeWireCapture(cfg, nil)
	case config.BackendWlrExport:
		logger.Printf("backend %s requested but not wired in this build, substituting %s", config.BackendWlrExport, config.BackendPortal)
		return newPortalCapture(cfg)
	case config.BackendPortal, config.BackendAuto:
		return newPortalCapture(cfg)
	default:
		return newPortalCapture(cfg)
	}
}

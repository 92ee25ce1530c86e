//go:build !linux

package encode

import (
	"waycast/internal/config"
	"waycast/internal/werrors"
)

// newBackend has no non-Linux implementation: the cgo libavcodec binding
// this package builds on lives in ffmpeg_linux.go only.
func newBackend(config.EncoderConfig) (backend, error) {
	return nil, werrors.Newf(werrors.KindEncoderInit, "encode: ffmpeg backend is only supported on linux")
}

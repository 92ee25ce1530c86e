//go:build !linux

package output

import (
	"waycast/internal/config"
	"waycast/internal/werrors"
)

func newFileMuxer(path string, container config.Container) (OutputSink, error) {
	return nil, werrors.Newf(werrors.KindFileOutput, "output: file muxer is only supported on linux")
}

func newNetworkMuxer(url, formatName string, opts map[string]string) (OutputSink, error) {
	return nil, werrors.Newf(werrors.KindStreaming, "output: network muxer is only supported on linux")
}

func newVirtualCamera(name, description string) (RawOutputSink, error) {
	return nil, werrors.Newf(werrors.KindVirtualCamera, "output: virtual camera is only supported on linux")
}

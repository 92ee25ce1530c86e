//go:build !linux

package audio

import (
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// newAACEncoder has no non-Linux implementation: the cgo libavcodec AAC
// binding lives in aac_linux.go only.
func newAACEncoder(sampleRate int, channels model.ChannelLayout, bitrateBPS int64) (Encoder, error) {
	return nil, werrors.Newf(werrors.KindAudioEncoder, "audio: aac encoder is only supported on linux")
}

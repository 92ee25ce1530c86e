package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerateFrameDurationUs(t *testing.T) {
	tests := []struct {
		name string
		fr   Framerate
		want int64
	}{
		{"60fps", Framerate{60, 1}, 16666},
		{"30fps", Framerate{30, 1}, 33333},
		{"ntsc30", Framerate{30000, 1001}, 33366},
		{"120fps", Framerate{120, 1}, 8333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fr.FrameDurationUs())
		})
	}
}

func TestResolutionPixelsAndAspect(t *testing.T) {
	r := NewResolution(1920, 1080)
	assert.Equal(t, 1920*1080, r.Pixels())
	assert.InDelta(t, 16.0/9.0, r.AspectRatio(), 1e-6)
}

func TestFrameFormatSizeBytes(t *testing.T) {
	tests := []struct {
		format FrameFormat
		w, h   int
		want   int
	}{
		{FormatNV12, 1920, 1080, 1920 * 1080 * 3 / 2},
		{FormatYUV420P, 1920, 1080, 1920 * 1080 * 3 / 2},
		{FormatBGRA, 1920, 1080, 1920 * 1080 * 4},
		{FormatP010, 1920, 1080, 1920 * 1080 * 3},
	}
	for _, tt := range tests {
		got := tt.format.SizeBytes(tt.w, tt.h)
		assert.Equal(t, tt.want, got, "%s %dx%d", tt.format, tt.w, tt.h)
	}
}

func TestFrameFormatIsEncoderNative(t *testing.T) {
	assert.True(t, FormatNV12.IsEncoderNative())
	assert.True(t, FormatP010.IsEncoderNative())
	assert.False(t, FormatBGRA.IsEncoderNative())
	assert.False(t, FormatYUV420P.IsEncoderNative())
}

func TestNewFrameAllocatesExactSize(t *testing.T) {
	f := NewFrame(64, 48, FormatNV12)
	require.Len(t, f.Data, FormatNV12.SizeBytes(64, 48))
	assert.False(t, f.IsZeroCopy())
}

func TestFromDMABufIsZeroCopy(t *testing.T) {
	f := FromDMABuf(7, 64, 48, 256, FormatNV12)
	assert.True(t, f.IsZeroCopy())
	assert.Empty(t, f.Data)
	assert.Equal(t, 7, f.DMABufFD)
}

func TestPacketSize(t *testing.T) {
	p := Packet{Data: make([]byte, 128)}
	assert.Equal(t, 128, p.Size())
}

func TestChannelLayoutChannels(t *testing.T) {
	assert.Equal(t, 1, ChannelLayoutMono.Channels())
	assert.Equal(t, 2, ChannelLayoutStereo.Channels())
}

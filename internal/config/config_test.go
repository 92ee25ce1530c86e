package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waycast/internal/model"
)

func TestPresetTableMatchesSpec(t *testing.T) {
	tests := []struct {
		preset  Preset
		codec   model.CodecKind
		w, h    int
		fps     float64
		kbps    uint32
		ePreset EncoderPreset
		tuning  EncoderTuning
		gop     uint32
	}{
		{PresetDiscord720p, model.CodecH264, 1280, 720, 30, 3000, PresetFast, TuningLowLatency, 60},
		{PresetStream1080p60, model.CodecH264, 1920, 1080, 60, 6000, PresetMedium, TuningHighQuality, 120},
		{PresetQuality1440p60, model.CodecHEVC, 2560, 1440, 60, 12000, PresetSlow, TuningHighQuality, 120},
		{PresetGaming1440p120, model.CodecHEVC, 2560, 1440, 120, 15000, PresetFast, TuningLowLatency, 240},
		{PresetUltra4K60, model.CodecAV1, 3840, 2160, 60, 25000, PresetSlow, TuningHighQuality, 120},
		{PresetRecording, model.CodecHEVC, 0, 0, 60, 50000, PresetSlowest, TuningHighQuality, 300},
		{PresetHdr10_4K60, model.CodecHEVC, 3840, 2160, 60, 35000, PresetSlow, TuningHighQuality, 120},
	}
	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			cfg := tt.preset.EncoderConfig()
			assert.Equal(t, tt.codec, cfg.Codec)
			if tt.w != 0 {
				require.NotNil(t, cfg.Resolution)
				assert.Equal(t, tt.w, cfg.Resolution.Width)
				assert.Equal(t, tt.h, cfg.Resolution.Height)
			} else {
				assert.Nil(t, cfg.Resolution)
			}
			assert.Equal(t, tt.fps, cfg.Framerate.FPS())
			assert.Equal(t, tt.kbps, cfg.BitrateKbps)
			assert.Equal(t, tt.ePreset, cfg.Preset)
			assert.Equal(t, tt.tuning, cfg.Tuning)
			assert.Equal(t, tt.gop, cfg.GOPSize)
		})
	}
}

func TestLowLatencyPresetHasNoBFrames(t *testing.T) {
	cfg := PresetLowLatencyName.EncoderConfig()
	assert.Equal(t, uint32(0), cfg.BFrames)
	assert.Nil(t, cfg.Resolution)
	assert.Equal(t, TuningUltraLowLatency, cfg.Tuning)
}

func TestHdr10PresetUsesP010(t *testing.T) {
	cfg := PresetHdr10_4K60.EncoderConfig()
	assert.Equal(t, model.FormatP010, cfg.PixelFormat)
	require.NotNil(t, cfg.HDR)
	assert.True(t, cfg.HDR.IsHDR())
	assert.Equal(t, "main10", cfg.Profile)
}

func TestEncoderPresetNVENCNames(t *testing.T) {
	assert.Equal(t, "p1", PresetFastest.NVENCName())
	assert.Equal(t, "p3", PresetFast.NVENCName())
	assert.Equal(t, "p4", PresetMedium.NVENCName())
	assert.Equal(t, "p5", PresetSlow.NVENCName())
	assert.Equal(t, "p7", PresetSlowest.NVENCName())
}

func TestEncoderTuningNVENCNames(t *testing.T) {
	assert.Equal(t, "hq", TuningHighQuality.NVENCName())
	assert.Equal(t, "ll", TuningLowLatency.NVENCName())
	assert.Equal(t, "ull", TuningUltraLowLatency.NVENCName())
	assert.Equal(t, "lossless", TuningLossless.NVENCName())
}

package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waycast/internal/model"
)

func TestOpusEncoderParamsReflectConfig(t *testing.T) {
	enc, err := newOpusEncoder(48000, model.ChannelLayoutStereo, 192_000)
	require.NoError(t, err)
	defer enc.Close()

	params := enc.Params()
	require.NotNil(t, params)
	assert.Equal(t, model.AudioCodecOpus, params.Codec)
	assert.Equal(t, 48000, params.SampleRate)
	assert.Equal(t, model.ChannelLayoutStereo, params.Channels)
	assert.Equal(t, int64(192_000), params.BitrateBPS)
}

func TestOpusEncoderEncodeProducesPacket(t *testing.T) {
	enc, err := newOpusEncoder(48000, model.ChannelLayoutStereo, 128_000)
	require.NoError(t, err)
	defer enc.Close()

	frame := model.AudioFrame{
		Data:         make([]byte, 960*2*2), // 960 samples/channel, stereo, S16LE
		SampleRate:   48000,
		Channels:     model.ChannelLayoutStereo,
		SampleFormat: model.SampleFormatS16LE,
		NumSamples:   960,
	}
	pkt, err := enc.Encode(frame)
	require.NoError(t, err)
	require.NotNil(t, pkt)
	assert.NotEmpty(t, pkt.Data)
}

func TestOpusEncoderFlushIsNoOp(t *testing.T) {
	enc, err := newOpusEncoder(48000, model.ChannelLayoutMono, 0)
	require.NoError(t, err)
	defer enc.Close()

	pkts, err := enc.Flush()
	require.NoError(t, err)
	assert.Empty(t, pkts)
}

func TestBytesToInt16RoundTrips(t *testing.T) {
	samples := []int16{1, -1, 32767, -32768, 0}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(uint16(s))
		buf[i*2+1] = byte(uint16(s) >> 8)
	}
	assert.Equal(t, samples, bytesToInt16(buf))
}

func TestNewEncoderDispatchesByCodec(t *testing.T) {
	enc, err := NewEncoder(model.AudioCodecOpus, 48000, model.ChannelLayoutStereo, 128_000)
	require.NoError(t, err)
	defer enc.Close()
	assert.Equal(t, model.AudioCodecOpus, enc.Params().Codec)
}

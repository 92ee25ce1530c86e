package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waycast/internal/model"
)

func TestProcessFrameIdentityClone(t *testing.T) {
	f := model.NewFrame(16, 16, model.FormatNV12)
	for i := range f.Data {
		f.Data[i] = byte(i)
	}
	out, err := ProcessFrame(f, Options{})
	require.NoError(t, err)
	assert.Equal(t, f.Data, out.Data)
	// must be an independent copy
	out.Data[0] = 0xFF
	assert.NotEqual(t, out.Data[0], f.Data[0])
}

func TestProcessFrameBGRARGBASwapIsInvolution(t *testing.T) {
	f := model.NewFrame(4, 4, model.FormatBGRA)
	for i := range f.Data {
		f.Data[i] = byte(i * 7)
	}
	rgba, err := ProcessFrame(f, Options{TargetFormat: model.FormatRGBA})
	require.NoError(t, err)
	assert.Equal(t, model.FormatRGBA, rgba.Format)

	back, err := ProcessFrame(rgba, Options{TargetFormat: model.FormatBGRA})
	require.NoError(t, err)
	assert.Equal(t, f.Data, back.Data)
}

func TestProcessFrameRejectsDMABufInput(t *testing.T) {
	f := model.FromDMABuf(3, 16, 16, 64, model.FormatNV12)
	_, err := ProcessFrame(f, Options{TargetFormat: model.FormatP010})
	assert.Error(t, err)
}

func TestPromoteToP010DoublesBufferSize(t *testing.T) {
	f := model.NewFrame(8, 8, model.FormatNV12)
	for i := range f.Data {
		f.Data[i] = byte(200 + i%50)
	}
	out, err := ProcessFrame(f, Options{TargetFormat: model.FormatP010})
	require.NoError(t, err)
	assert.Equal(t, model.FormatP010, out.Format)
	assert.Equal(t, model.FormatP010.SizeBytes(8, 8), len(out.Data))
}

func TestBt2020ShiftPreservesOrdering(t *testing.T) {
	a := bt2020Shift(10)
	b := bt2020Shift(200)
	assert.Less(t, a, b)
	assert.LessOrEqual(t, b, uint16(1023))
}

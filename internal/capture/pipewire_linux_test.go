//go:build linux

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waycast/internal/model"
)

func TestSpaVideoFormatToModel(t *testing.T) {
	assert.Equal(t, model.FormatBGRA, spaFormatBGRx.toModel())
	assert.Equal(t, model.FormatBGRA, spaFormatBGRA.toModel())
	assert.Equal(t, model.FormatRGBA, spaFormatRGBx.toModel())
	assert.Equal(t, model.FormatRGBA, spaFormatRGBA.toModel())
	assert.Equal(t, model.FormatNV12, spaFormatNV12.toModel())
	assert.Equal(t, model.FormatUnknown, spaFormatUnknown.toModel())
}

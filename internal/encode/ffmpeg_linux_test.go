//go:build linux

package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waycast/internal/config"
	"waycast/internal/model"
)

func TestCandidateNamesAutoTriesNVENCBeforeSoftware(t *testing.T) {
	names := candidateNames(model.CodecH264, config.EncoderBackendAuto)
	assert.Equal(t, []string{"h264_nvenc", "libx264"}, names)

	names = candidateNames(model.CodecHEVC, "")
	assert.Equal(t, []string{"hevc_nvenc", "libx265"}, names)
}

func TestCandidateNamesNVENCForcesHardwareOnly(t *testing.T) {
	names := candidateNames(model.CodecAV1, config.EncoderBackendNVENC)
	assert.Equal(t, []string{"av1_nvenc"}, names)
}

func TestCandidateNamesCPUForcesSoftwareOnly(t *testing.T) {
	names := candidateNames(model.CodecH264, config.EncoderBackendCPU)
	assert.Equal(t, []string{"libx264"}, names)

	names = candidateNames(model.CodecAV1, config.EncoderBackendCPU)
	assert.Equal(t, []string{"libsvtav1", "libaom-av1"}, names)
}

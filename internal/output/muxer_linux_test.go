//go:build linux

package output

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waycast/internal/config"
)

func TestMaskStreamKeyHidesLastSegment(t *testing.T) {
	assert.Equal(t, "rtmp://live.example.com/app/****", maskStreamKey("rtmp://live.example.com/app/sk_live_abc123"))
}

func TestMaskStreamKeyLeavesBareURLUnchanged(t *testing.T) {
	assert.Equal(t, "rtmp://live.example.com", maskStreamKey("rtmp://live.example.com"))
}

func TestContainerFormatName(t *testing.T) {
	assert.Equal(t, "mp4", containerFormatName(config.ContainerMP4))
	assert.Equal(t, "webm", containerFormatName(config.ContainerWebM))
	assert.Equal(t, "mpegts", containerFormatName(config.ContainerMPEGTS))
	assert.Equal(t, "matroska", containerFormatName(config.ContainerMatroska))
}

func TestOptsStringJoinsKeyValuePairs(t *testing.T) {
	assert.Equal(t, "", optsString(nil))
	assert.Equal(t, "a=1", optsString(map[string]string{"a": "1"}))
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waycast/internal/model"
	"waycast/internal/werrors"
)

func TestTrackerStartsZero(t *testing.T) {
	tr := &Tracker{}
	assert.Equal(t, model.Stats{}, tr.Snapshot())
}

func TestTrackerIncCapturedAndDropped(t *testing.T) {
	tr := &Tracker{}
	tr.incCaptured()
	tr.incCaptured()
	tr.incDropped()

	snap := tr.Snapshot()
	assert.Equal(t, uint64(2), snap.FramesCaptured)
	assert.Equal(t, uint64(1), snap.FramesDropped)
}

func TestTrackerMergeEncoderOverwritesEncodeFields(t *testing.T) {
	tr := &Tracker{}
	tr.incCaptured()
	tr.mergeEncoder(model.Stats{
		FramesEncoded:      10,
		BytesWritten:       2048,
		EncodingFPS:        59.9,
		AvgEncodeLatencyMs: 4.2,
	})

	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.FramesCaptured, "capture count is not touched by a merge")
	assert.Equal(t, uint64(10), snap.FramesEncoded)
	assert.Equal(t, uint64(2048), snap.BytesWritten)
	assert.Equal(t, 59.9, snap.EncodingFPS)
	assert.Equal(t, 4.2, snap.AvgEncodeLatencyMs)
}

func TestPipelineStopWithoutStartFails(t *testing.T) {
	p := New(Config{})
	err := p.Stop()
	assert.ErrorIs(t, err, werrors.ErrPipelineNotStarted)
}

func TestPipelineDoubleStartFails(t *testing.T) {
	p := New(Config{})
	// Simulate an already-running pipeline without spinning real media
	// threads, which would dial a live portal/PipeWire/libavcodec stack.
	p.running.Store(true)

	err := p.Start()
	assert.ErrorIs(t, err, werrors.ErrPipelineAlreadyStart)
}

func TestPipelineNotRunningByDefault(t *testing.T) {
	p := New(Config{})
	assert.False(t, p.IsRunning())
}

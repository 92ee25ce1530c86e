package output

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

type fakeSink struct {
	initErr    error
	writeErr   error
	finishErr  error
	bytes      uint64
	writes     int
	audioWrite int
	finished   bool
}

func (f *fakeSink) InitWithCodec(*model.CodecParams, *model.AudioParams) error { return f.initErr }

func (f *fakeSink) Write(pkt *model.Packet) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.bytes += uint64(len(pkt.Data))
	return nil
}

func (f *fakeSink) WriteAudio(pkt *model.AudioPacket) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.audioWrite++
	return nil
}

func (f *fakeSink) Finish() error {
	f.finished = true
	return f.finishErr
}

func (f *fakeSink) BytesWritten() uint64 { return f.bytes }

func TestMultiOutputWriteFansOutToAllChildren(t *testing.T) {
	a := &fakeSink{}
	b := &fakeSink{}
	m := &multiOutput{
		children: []OutputSink{a, b},
		failed:   []bool{false, false},
		lastErrs: []error{nil, nil},
	}

	err := m.Write(&model.Packet{Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, a.writes)
	assert.Equal(t, 1, b.writes)
}

func TestMultiOutputWriteSucceedsIfOneChildFails(t *testing.T) {
	a := &fakeSink{writeErr: werrors.New(werrors.KindStreaming)}
	b := &fakeSink{}
	m := &multiOutput{
		children: []OutputSink{a, b},
		failed:   []bool{false, false},
		lastErrs: []error{nil, nil},
	}

	err := m.Write(&model.Packet{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, 0, a.writes)
	assert.Equal(t, 1, b.writes)
}

func TestMultiOutputWriteFailsIfAllChildrenFail(t *testing.T) {
	a := &fakeSink{writeErr: werrors.New(werrors.KindStreaming)}
	b := &fakeSink{writeErr: werrors.New(werrors.KindStreaming)}
	m := &multiOutput{
		children: []OutputSink{a, b},
		failed:   []bool{false, false},
		lastErrs: []error{nil, nil},
	}

	err := m.Write(&model.Packet{Data: []byte{1}})
	assert.Error(t, err)
}

func TestMultiOutputSkipsAlreadyFailedChildren(t *testing.T) {
	a := &fakeSink{}
	b := &fakeSink{}
	m := &multiOutput{
		children: []OutputSink{a, b},
		failed:   []bool{true, false},
		lastErrs: []error{werrors.New(werrors.KindOutputInit), nil},
	}

	err := m.Write(&model.Packet{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, 0, a.writes)
	assert.Equal(t, 1, b.writes)
}

func TestMultiOutputFinishFinishesAllChildren(t *testing.T) {
	a := &fakeSink{}
	b := &fakeSink{}
	m := &multiOutput{
		children: []OutputSink{a, b},
		failed:   []bool{false, false},
		lastErrs: []error{nil, nil},
	}

	require.NoError(t, m.Finish())
	assert.True(t, a.finished)
	assert.True(t, b.finished)
}

func TestMultiOutputBytesWrittenReportsMax(t *testing.T) {
	a := &fakeSink{bytes: 100}
	b := &fakeSink{bytes: 500}
	m := &multiOutput{
		children: []OutputSink{a, b},
		failed:   []bool{false, false},
		lastErrs: []error{nil, nil},
	}

	assert.Equal(t, uint64(500), m.BytesWritten())
}

func TestAllFailed(t *testing.T) {
	assert.True(t, allFailed([]bool{true, true}))
	assert.False(t, allFailed([]bool{true, false}))
	assert.True(t, allFailed(nil))
}

func TestNewMultiOutputRejectsEmptyList(t *testing.T) {
	_, err := newMultiOutput(nil)
	assert.Error(t, err)
}

func TestBuildSRTURLClampsLatency(t *testing.T) {
	got := buildSRTURL("srt://host:9000", config.SRTOptions{LatencyMs: 1})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "20000", u.Query().Get("latency"))

	got = buildSRTURL("srt://host:9000", config.SRTOptions{LatencyMs: 100000})
	u, err = url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "8000000", u.Query().Get("latency"))
}

func TestBuildSRTURLDefaultsModeToCaller(t *testing.T) {
	got := buildSRTURL("srt://host:9000", config.SRTOptions{})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "caller", u.Query().Get("mode"))
	assert.Equal(t, "live", u.Query().Get("transtype"))
}

func TestBuildSRTURLOmitsInvalidPBKeyLen(t *testing.T) {
	got := buildSRTURL("srt://host:9000", config.SRTOptions{PBKeyLen: 7})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "", u.Query().Get("pbkeylen"))

	got = buildSRTURL("srt://host:9000", config.SRTOptions{PBKeyLen: 16})
	u, err = url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "16", u.Query().Get("pbkeylen"))
}

func TestBuildSRTURLIncludesOptionalFields(t *testing.T) {
	got := buildSRTURL("srt://host:9000", config.SRTOptions{
		Passphrase: "s3cret-passphrase",
		StreamID:   "stream1",
		MaxBW:      1_000_000,
	})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-passphrase", u.Query().Get("passphrase"))
	assert.Equal(t, "stream1", u.Query().Get("streamid"))
	assert.Equal(t, "1000000", u.Query().Get("maxbw"))
}

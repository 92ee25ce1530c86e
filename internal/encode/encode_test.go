package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waycast/internal/config"
	"waycast/internal/model"
)

// fakeBackend is a minimal in-memory backend stand-in so Session's state
// machine, counters, and codec-params-once logic can be exercised without
// cgo.
type fakeBackend struct {
	opened    bool
	openErr   error
	width     int
	height    int
	extra     []byte
	encodeErr error
	flushErr  error
	pending   [][]byte
	keys      []bool
}

func (b *fakeBackend) open(width, height int, cfg config.EncoderConfig) error {
	if b.openErr != nil {
		return b.openErr
	}
	b.opened = true
	b.width, b.height = width, height
	return nil
}

func (b *fakeBackend) encode(frame *model.Frame) ([]byte, bool, int64, int64, error) {
	if b.encodeErr != nil {
		return nil, false, 0, 0, b.encodeErr
	}
	if len(b.pending) == 0 {
		return []byte{0x01, 0x02, 0x03}, true, frame.PTS, frame.PTS, nil
	}
	data := b.pending[0]
	key := b.keys[0]
	b.pending = b.pending[1:]
	b.keys = b.keys[1:]
	return data, key, frame.PTS, frame.PTS, nil
}

func (b *fakeBackend) flush() ([][]byte, []bool, []int64, []int64, error) {
	if b.flushErr != nil {
		return nil, nil, nil, nil, b.flushErr
	}
	return [][]byte{{0xAA}}, []bool{false}, []int64{0}, []int64{0}, nil
}

func (b *fakeBackend) extradata() []byte { return b.extra }
func (b *fakeBackend) close()            {}

func testFrame() *model.Frame {
	f := model.NewFrame(1920, 1080, model.FormatNV12)
	f.PTS = 1_700_000_000_000
	return &f
}

func TestSessionStartsCreated(t *testing.T) {
	s := NewSession(config.DefaultEncoderConfig(), &fakeBackend{})
	assert.Equal(t, StateCreated, s.state)
}

func TestSessionBindsOnFirstEncode(t *testing.T) {
	be := &fakeBackend{extra: []byte{0xDE, 0xAD}}
	s := NewSession(config.DefaultEncoderConfig(), be)

	pkt, err := s.Encode(testFrame())
	require.NoError(t, err)
	require.NotNil(t, pkt)

	assert.Equal(t, StateRunning, s.state)
	assert.True(t, be.opened)
	assert.Equal(t, 1920, be.width)
	assert.Equal(t, 1080, be.height)
}

func TestSessionPublishesCodecParamsOnceAfterFirstPacket(t *testing.T) {
	be := &fakeBackend{extra: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	s := NewSession(config.DefaultEncoderConfig(), be)

	assert.Nil(t, s.CodecParams())

	_, err := s.Encode(testFrame())
	require.NoError(t, err)

	params := s.CodecParams()
	require.NotNil(t, params)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, params.Extradata)
	assert.Equal(t, model.CodecH264, params.Codec)

	be.extra = []byte{0x00}
	_, err = s.Encode(testFrame())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, s.CodecParams().Extradata)
}

func TestSessionEncodeAfterFlushFails(t *testing.T) {
	be := &fakeBackend{}
	s := NewSession(config.DefaultEncoderConfig(), be)
	_, err := s.Encode(testFrame())
	require.NoError(t, err)

	_, err = s.Flush()
	require.NoError(t, err)
	assert.Equal(t, StateFlushed, s.state)

	_, err = s.Encode(testFrame())
	assert.Error(t, err)
}

func TestSessionStatsAccumulate(t *testing.T) {
	be := &fakeBackend{}
	s := NewSession(config.DefaultEncoderConfig(), be)

	_, err := s.Encode(testFrame())
	require.NoError(t, err)
	_, err = s.Encode(testFrame())
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.FramesEncoded)
	assert.Equal(t, uint64(2), stats.FramesCaptured)
	assert.Greater(t, stats.BytesWritten, uint64(0))
}

func TestSessionEncodeNoDataYieldsNilPacketNoError(t *testing.T) {
	be := &fakeBackend{pending: [][]byte{nil}, keys: []bool{false}}
	s := NewSession(config.DefaultEncoderConfig(), be)

	pkt, err := s.Encode(testFrame())
	require.NoError(t, err)
	assert.Nil(t, pkt)
}

func TestSessionReconfigureUpdatesConfigForNextBind(t *testing.T) {
	be := &fakeBackend{}
	s := NewSession(config.DefaultEncoderConfig(), be)

	newCfg := config.DefaultEncoderConfig()
	newCfg.BitrateKbps = 12000
	require.NoError(t, s.Reconfigure(newCfg))
	assert.Equal(t, uint32(12000), s.cfg.BitrateKbps)
}

func TestSessionPreservesFramePTSIntoPacket(t *testing.T) {
	be := &fakeBackend{}
	s := NewSession(config.DefaultEncoderConfig(), be)

	frame := testFrame()
	pkt, err := s.Encode(frame)
	require.NoError(t, err)
	require.NotNil(t, pkt)
	assert.Equal(t, frame.PTS, pkt.PTS)
	assert.Equal(t, frame.PTS, pkt.DTS)

	params := s.CodecParams()
	require.NotNil(t, params)
	assert.Equal(t, 1, params.TimeBaseNum)
	assert.Equal(t, 1_000_000, params.TimeBaseDen)
}

func TestSessionKeyframeSetsFlag(t *testing.T) {
	be := &fakeBackend{pending: [][]byte{{0x01}}, keys: []bool{true}}
	s := NewSession(config.DefaultEncoderConfig(), be)

	pkt, err := s.Encode(testFrame())
	require.NoError(t, err)
	require.NotNil(t, pkt)
	assert.True(t, pkt.IsKeyframe)
	assert.Equal(t, model.PacketFlagKey, pkt.Flags)
}

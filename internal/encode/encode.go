// Package encode implements the encoder stage (C4): a state machine wrapping
// a cgo libavcodec backend, with lazy geometry binding, rate-control
// selection, and one-shot codec-parameter publication.
package encode

import (
	"sync"
	"time"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// emaAlpha is the smoothing factor for the running encode-latency average,
// per spec.md §4.4.
const emaAlpha = 0.05

// State is the encoder session's lifecycle stage.
type State int

const (
	StateCreated State = iota
	StateBound
	StateRunning
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateFlushed:
		return "flushed"
	default:
		return "created"
	}
}

// Encoder is the contract every codec backend implements.
type Encoder interface {
	Init() error
	Encode(frame *model.Frame) (*model.Packet, error)
	Flush() ([]model.Packet, error)
	Stats() model.Stats
	CodecParams() *model.CodecParams
	Reconfigure(cfg config.EncoderConfig) error
	Close()
}

// backend is the minimal surface a cgo codec implementation must provide;
// Session wraps one of these with the state machine, counters, and
// codec-params-once semantics that are common to every codec.
type backend interface {
	open(width, height int, cfg config.EncoderConfig) error
	encode(frame *model.Frame) (data []byte, isKeyframe bool, pts, dts int64, err error)
	flush() (datas [][]byte, keys []bool, ptss, dtss []int64, err error)
	extradata() []byte
	close()
}

// Session is the shared Encoder implementation: it owns the state machine,
// statistics, and codec-params-once handoff; backend does the codec work.
type Session struct {
	cfg config.EncoderConfig
	be  backend

	mu         sync.Mutex
	state      State
	width      int
	height     int
	stats      model.Stats
	params     *model.CodecParams
	paramsDone bool
	startTime  time.Time
	totalBytes uint64
}

// NewSession constructs a Session in the Created state, not yet bound to
// any backend codec context.
func NewSession(cfg config.EncoderConfig, be backend) *Session {
	return &Session{cfg: cfg, be: be, state: StateCreated}
}

func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return nil
	}
	return nil
}

// Encode advances Created/Bound into Running on first call, binding backend
// geometry from the frame. It returns (nil, nil) on EAGAIN-equivalent (no
// packet ready yet) and a non-nil error only on unrecoverable failure.
func (s *Session) Encode(frame *model.Frame) (*model.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFlushed {
		return nil, werrors.New(werrors.KindEncoderNotInitialized)
	}

	if s.state == StateCreated {
		if err := s.bindLocked(frame.Width, frame.Height); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	data, isKey, pts, dts, err := s.be.encode(frame)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindEncodingFailed, err, "backend encode")
	}
	s.stats.FramesCaptured++
	if data == nil {
		return nil, nil
	}

	elapsed := time.Since(start)
	s.recordLatencyLocked(elapsed)

	s.stats.FramesEncoded++
	s.totalBytes += uint64(len(data))
	s.stats.BytesWritten = s.totalBytes

	pkt := &model.Packet{
		Data:       data,
		PTS:        pts,
		DTS:        dts,
		Duration:   s.cfg.Framerate.FrameDurationUs(),
		IsKeyframe: isKey,
	}
	if isKey {
		pkt.Flags = model.PacketFlagKey
	}

	if !s.paramsDone {
		s.publishParamsLocked()
	}

	return pkt, nil
}

func (s *Session) bindLocked(width, height int) error {
	w, h := width, height
	if s.cfg.Resolution != nil {
		w, h = s.cfg.Resolution.Width, s.cfg.Resolution.Height
	}
	if err := s.be.open(w, h, s.cfg); err != nil {
		return werrors.Wrap(werrors.KindEncoderInit, err, "open backend")
	}
	s.width, s.height = w, h
	s.state = StateRunning
	s.startTime = time.Now()
	return nil
}

func (s *Session) recordLatencyLocked(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	if s.stats.AvgEncodeLatencyMs == 0 {
		s.stats.AvgEncodeLatencyMs = ms
	} else {
		s.stats.AvgEncodeLatencyMs = emaAlpha*ms + (1-emaAlpha)*s.stats.AvgEncodeLatencyMs
	}
	elapsedSec := time.Since(s.startTime).Seconds()
	if elapsedSec > 0 {
		s.stats.EncodingFPS = float64(s.stats.FramesEncoded+1) / elapsedSec
	}
}

// publishParamsLocked produces CodecParams exactly once, after the first
// packet, so the backend's extradata (SPS/PPS/VPS/OBU) is populated. The
// time base is microseconds: Packet.PTS/DTS values trace back to the
// capture frame's wall-clock PTS unchanged, so the muxer's rescale step
// works directly off 1/1000000 without an intermediate lossy conversion.
func (s *Session) publishParamsLocked() {
	s.paramsDone = true
	bitrateBPS := int64(s.cfg.BitrateKbps) * 1000
	s.params = &model.CodecParams{
		Codec:       s.cfg.Codec,
		PixelFormat: s.cfg.PixelFormat,
		Extradata:   s.be.extradata(),
		Resolution:  model.NewResolution(s.width, s.height),
		Framerate:   s.cfg.Framerate,
		TimeBaseNum: 1,
		TimeBaseDen: 1_000_000,
		BitrateBPS:  bitrateBPS,
	}
}

func (s *Session) Flush() ([]model.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		s.state = StateFlushed
		return nil, nil
	}
	datas, keys, ptss, dtss, err := s.be.flush()
	if err != nil {
		return nil, werrors.Wrap(werrors.KindEncodingFailed, err, "flush")
	}
	out := make([]model.Packet, 0, len(datas))
	for i, data := range datas {
		s.stats.FramesEncoded++
		s.totalBytes += uint64(len(data))
		pkt := model.Packet{
			Data:       data,
			PTS:        ptss[i],
			DTS:        dtss[i],
			Duration:   s.cfg.Framerate.FrameDurationUs(),
			IsKeyframe: keys[i],
		}
		if keys[i] {
			pkt.Flags = model.PacketFlagKey
		}
		if !s.paramsDone {
			s.publishParamsLocked()
		}
		out = append(out, pkt)
	}
	s.stats.BytesWritten = s.totalBytes
	s.state = StateFlushed
	return out, nil
}

func (s *Session) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) CodecParams() *model.CodecParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Reconfigure stores the new configuration; it takes effect on the next
// init cycle (a fresh Session), not on the currently bound backend.
func (s *Session) Reconfigure(cfg config.EncoderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.be.close()
}

// New constructs an Encoder for cfg.Codec using the platform backend.
func New(cfg config.EncoderConfig) (Encoder, error) {
	be, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewSession(cfg, be), nil
}

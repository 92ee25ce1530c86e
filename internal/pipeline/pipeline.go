// Package pipeline implements the end-to-end orchestrator (C6): it wires
// capture, processing, encoding, audio, and output into a running session
// and owns that session's start/stop lifecycle.
package pipeline

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"waycast/internal/audio"
	"waycast/internal/capture"
	"waycast/internal/config"
	"waycast/internal/encode"
	"waycast/internal/model"
	"waycast/internal/output"
	"waycast/internal/process"
	"waycast/internal/werrors"
)

var logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)

// frameWaitTimeout bounds how long the encoder thread blocks on the frame
// channel before re-checking the running flag.
const frameWaitTimeout = 100 * time.Millisecond

// shutdownGrace is how long Stop waits after signaling shutdown before
// returning, giving media threads time to flush and finalize writers.
const shutdownGrace = 200 * time.Millisecond

// Config bundles the capture, encoder, and output configuration for one
// pipeline run, plus the identity a virtual-camera sink publishes under.
type Config struct {
	Capture     config.CaptureConfig
	Encoder     config.EncoderConfig
	Output      config.Output
	CameraName  string
	CameraDesc  string
}

// Tracker is the thread-confined statistics counter every pipeline thread
// updates through a single short-held lock, per spec.md's shared-resource
// rule ("statistics counters are behind a single lock held briefly only
// during update").
type Tracker struct {
	mu    sync.Mutex
	stats model.Stats
}

func (t *Tracker) incCaptured() {
	t.mu.Lock()
	t.stats.FramesCaptured++
	t.mu.Unlock()
}

func (t *Tracker) incDropped() {
	t.mu.Lock()
	t.stats.FramesDropped++
	t.mu.Unlock()
}

func (t *Tracker) mergeEncoder(s model.Stats) {
	t.mu.Lock()
	t.stats.FramesEncoded = s.FramesEncoded
	t.stats.BytesWritten = s.BytesWritten
	t.stats.EncodingFPS = s.EncodingFPS
	t.stats.AvgEncodeLatencyMs = s.AvgEncodeLatencyMs
	t.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() model.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Pipeline owns one capture->encode->output session. It is not reusable
// across Stop/Start cycles in the sense of resuming state — Start after
// Stop begins a fresh session with fresh counters.
type Pipeline struct {
	cfg Config

	running atomic.Bool
	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup

	tracker *Tracker
}

// New constructs a Pipeline in the not-running state.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, tracker: &Tracker{}}
}

// Stats returns a snapshot of the running (or last-run) session's counters.
func (p *Pipeline) Stats() model.Stats {
	return p.tracker.Snapshot()
}

// IsRunning reports whether the pipeline has an active session.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// Start launches the pipeline's media threads. It is idempotent: calling
// Start on an already-running pipeline returns PipelineAlreadyRunning.
func (p *Pipeline) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return werrors.ErrPipelineAlreadyStart
	}

	p.mu.Lock()
	p.stop = make(chan struct{})
	p.tracker = &Tracker{}
	stop := p.stop
	p.mu.Unlock()

	if p.cfg.Output.VirtualCamera {
		p.wg.Add(1)
		go p.runRawPipeline(stop)
		return nil
	}

	codecParamsCh := make(chan *model.CodecParams, 1)
	audioParamsCh := make(chan *model.AudioParams, 1)
	frameCh := make(chan model.Frame, 4)
	packetCh := make(chan model.Packet, 8)
	audioPacketCh := make(chan model.AudioPacket, 16)

	if p.cfg.Capture.CaptureAudio {
		p.wg.Add(1)
		go p.runAudio(stop, audioParamsCh, audioPacketCh)
	} else {
		audioParamsCh <- nil
	}

	p.wg.Add(1)
	go p.runVideoEncoder(stop, frameCh, packetCh, codecParamsCh)

	p.wg.Add(1)
	go p.runCaptureAndOutput(stop, frameCh, packetCh, audioPacketCh, codecParamsCh, audioParamsCh)

	return nil
}

// Stop signals every media thread to exit, waits for them to finish their
// own finalizers, then returns after a short grace period for writers to
// settle (matching the teacher's post-close log-and-settle pattern).
func (p *Pipeline) Stop() error {
	if !p.running.CompareAndSwap(true, false) {
		return werrors.ErrPipelineNotStarted
	}

	p.mu.Lock()
	stop := p.stop
	p.mu.Unlock()

	close(stop)
	p.wg.Wait()
	time.Sleep(shutdownGrace)
	return nil
}

// runAudio is the blocking media thread for audio: capture + encode in a
// loop, with codec params published once up front (the encoder's params
// are static, unlike video's which need the first packet for extradata).
func (p *Pipeline) runAudio(stop <-chan struct{}, paramsCh chan<- *model.AudioParams, packetCh chan<- model.AudioPacket) {
	defer p.wg.Done()
	defer close(packetCh)

	cap, err := audio.New(p.cfg.Capture)
	if err != nil {
		paramsCh <- nil
		return
	}
	if err := cap.Start(); err != nil {
		paramsCh <- nil
		return
	}
	defer cap.Stop()

	enc, err := audio.NewEncoder(model.AudioCodecOpus, 48000, model.ChannelLayoutStereo, 128_000)
	if err != nil {
		paramsCh <- nil
		return
	}
	defer enc.Close()

	paramsCh <- enc.Params()

	for {
		select {
		case <-stop:
			flushed, _ := enc.Flush()
			for _, pkt := range flushed {
				packetCh <- pkt
			}
			return
		default:
		}

		frame, err := cap.NextFrame()
		if err != nil {
			if werrors.Is(err, werrors.KindCaptureEnded) {
				return
			}
			continue // Timeout: non-fatal, per spec.md's audio-capture timeout policy
		}

		pkt, err := enc.Encode(frame)
		if err != nil || pkt == nil {
			continue
		}
		packetCh <- *pkt
	}
}

// runVideoEncoder is the blocking media thread for the video encoder: reads
// raw frames with a bounded wait, processes and encodes each, and publishes
// CodecParams exactly once on the first packet produced.
func (p *Pipeline) runVideoEncoder(stop <-chan struct{}, frameCh <-chan model.Frame, packetCh chan<- model.Packet, paramsCh chan<- *model.CodecParams) {
	defer p.wg.Done()
	defer close(packetCh)

	enc, err := encode.New(p.cfg.Encoder)
	if err != nil {
		paramsCh <- nil
		return
	}
	if err := enc.Init(); err != nil {
		paramsCh <- nil
		return
	}
	defer enc.Close()

	paramsPublished := false

	for {
		select {
		case <-stop:
			flushed, _ := enc.Flush()
			for _, pkt := range flushed {
				packetCh <- pkt
			}
			p.tracker.mergeEncoder(enc.Stats())
			return
		case frame, ok := <-frameCh:
			if !ok {
				return
			}
			processed, err := process.ProcessFrame(frame, process.Options{
				TargetResolution: p.cfg.Encoder.Resolution,
				TargetFormat:     p.cfg.Encoder.PixelFormat,
			})
			if err != nil {
				logger.Printf("frame processing failed, skipping frame: %v", err)
				continue
			}
			pkt, err := enc.Encode(&processed)
			if err != nil {
				logger.Printf("frame encode failed, skipping frame: %v", err)
				p.tracker.mergeEncoder(enc.Stats())
				continue
			}
			if pkt == nil {
				p.tracker.mergeEncoder(enc.Stats())
				continue
			}
			if !paramsPublished {
				paramsCh <- enc.CodecParams()
				paramsPublished = true
			}
			packetCh <- *pkt
			p.tracker.mergeEncoder(enc.Stats())
		case <-time.After(frameWaitTimeout):
			// re-check stop/frameCh; no frame within the window is routine.
		}
	}
}

// runCaptureAndOutput is the async capture+output task: it starts capture,
// awaits both single-shot params channels, constructs the output sink, and
// then fans capture frames into the encoder while draining encoded packets
// to the sink. Go's select cannot await a blocking call directly, so the
// capture side runs in its own feeder goroutine (mirroring how the audio
// subsystem already separates delivery from the main select loop) while
// this goroutine owns the output-writing select loop.
func (p *Pipeline) runCaptureAndOutput(
	stop <-chan struct{},
	frameCh chan<- model.Frame,
	packetCh <-chan model.Packet,
	audioPacketCh <-chan model.AudioPacket,
	codecParamsCh <-chan *model.CodecParams,
	audioParamsCh <-chan *model.AudioParams,
) {
	defer p.wg.Done()

	cap, err := capture.New(p.cfg.Capture)
	if err != nil {
		return
	}
	if err := cap.Start(); err != nil {
		return
	}
	defer cap.Stop()

	feederDone := make(chan struct{})
	go p.captureFeeder(stop, cap, frameCh, feederDone)

	var videoParams *model.CodecParams
	select {
	case videoParams = <-codecParamsCh:
	case <-stop:
		<-feederDone
		return
	}

	var audioParams *model.AudioParams
	select {
	case audioParams = <-audioParamsCh:
	case <-stop:
		<-feederDone
		return
	}

	if videoParams == nil {
		if p.cfg.Output.FilePath == "" {
			logger.Printf("encoder produced no codec params and output sink does not tolerate a fallback, aborting")
			<-feederDone
			return
		}
		def := model.DefaultCodecParams()
		videoParams = &def
	}

	sink, err := output.New(p.cfg.Output)
	if err != nil {
		<-feederDone
		return
	}
	if err := sink.InitWithCodec(videoParams, audioParams); err != nil {
		<-feederDone
		return
	}

	// pc/ac are nilled out once their producer closes them so the select
	// below blocks on that arm forever instead of busy-spinning on a
	// drained, closed channel.
	pc, ac := packetCh, audioPacketCh
	for pc != nil || ac != nil {
		select {
		case <-stop:
			p.drainAndFinish(sink, pc, ac)
			<-feederDone
			return
		case pkt, ok := <-pc:
			if !ok {
				pc = nil
				continue
			}
			sink.Write(&pkt)
		case apkt, ok := <-ac:
			if !ok {
				ac = nil
				continue
			}
			sink.WriteAudio(&apkt)
		}
	}

	sink.Finish()
	<-feederDone
}

// drainAndFinish empties whatever is already buffered in the packet
// channels (best-effort, non-blocking) before finishing the sink, so
// packets produced just before shutdown are not silently lost.
func (p *Pipeline) drainAndFinish(sink output.OutputSink, packetCh <-chan model.Packet, audioPacketCh <-chan model.AudioPacket) {
	deadline := time.After(shutdownGrace)
	for {
		select {
		case pkt, ok := <-packetCh:
			if ok {
				sink.Write(&pkt)
			}
		case apkt, ok := <-audioPacketCh:
			if ok {
				sink.WriteAudio(&apkt)
			}
		case <-deadline:
			sink.Finish()
			return
		}
	}
}

// captureFeeder pulls frames off capture and forwards them to frameCh,
// dropping the newest frame on a full channel (realtime capture must never
// block on a slow encoder) per spec.md's backpressure asymmetry.
func (p *Pipeline) captureFeeder(stop <-chan struct{}, cap capture.Capture, frameCh chan<- model.Frame, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := cap.NextFrame()
		if err != nil {
			if werrors.Is(err, werrors.KindCaptureEnded) {
				return
			}
			if !werrors.Is(err, werrors.KindTimeout) {
				logger.Printf("capture error, retrying: %v", err)
			}
			continue // Timeout: non-fatal
		}

		p.tracker.incCaptured()
		select {
		case frameCh <- frame:
		default:
			p.tracker.incDropped()
		}
	}
}

// runRawPipeline serves the virtual-camera path: raw frames are forwarded
// directly to the camera sink with no encoder in between, matching the
// RawOutputSink contract's separation from the encoded-packet path.
func (p *Pipeline) runRawPipeline(stop <-chan struct{}) {
	defer p.wg.Done()

	cap, err := capture.New(p.cfg.Capture)
	if err != nil {
		return
	}
	if err := cap.Start(); err != nil {
		return
	}
	defer cap.Stop()

	sink, err := output.NewRaw(p.cfg.Output, p.cfg.CameraName, p.cfg.CameraDesc)
	if err != nil {
		return
	}

	initialized := false
	for {
		select {
		case <-stop:
			sink.Finish()
			return
		default:
		}

		frame, err := cap.NextFrame()
		if err != nil {
			if werrors.Is(err, werrors.KindCaptureEnded) {
				sink.Finish()
				return
			}
			continue
		}

		if !initialized {
			if err := sink.InitRaw(model.NewResolution(frame.Width, frame.Height), frame.Format); err != nil {
				return
			}
			initialized = true
		}
		p.tracker.incCaptured()
		sink.WriteFrame(&frame)
	}
}

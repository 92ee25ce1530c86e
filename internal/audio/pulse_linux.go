//go:build linux

package audio

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

const (
	pulseSampleRate    = 48000
	pulseChannels      = 2
	pulseFrameMs       = 20
	pulseFrameSamples  = pulseSampleRate * pulseFrameMs / 1000 // 960 samples/channel
)

// pcmCollector implements pulse.Writer: it accumulates raw S16LE PCM bytes
// pushed by the PulseAudio client thread for later draining by the capture
// loop's ticker.
type pcmCollector struct {
	mu  sync.Mutex
	buf []int16
}

func (p *pcmCollector) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(data) / 2
	for i := 0; i < n; i++ {
		p.buf = append(p.buf, int16(binary.LittleEndian.Uint16(data[i*2:i*2+2])))
	}
	return len(data), nil
}

func (p *pcmCollector) Format() byte { return proto.FormatInt16LE }

func (p *pcmCollector) drain(count int) []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) < count {
		return nil
	}
	out := make([]int16, count)
	copy(out, p.buf[:count])
	p.buf = p.buf[count:]
	return out
}

// pulseCapture records the default sink's monitor at 48kHz stereo and
// delivers fixed 20ms PCM frames through NextFrame.
type pulseCapture struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu     sync.Mutex
	active bool
	frames chan model.AudioFrame
	done   chan struct{}
	pts    int64
}

func newPulseCapture(cfg config.CaptureConfig) (*pulseCapture, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("waycast"))
	if err != nil {
		return nil, werrors.Wrap(werrors.KindAudioCapture, err, "connect to pulseaudio")
	}
	return &pulseCapture{
		client: client,
		frames: make(chan model.AudioFrame, 4),
		done:   make(chan struct{}),
	}, nil
}

func (p *pulseCapture) Start() error {
	sink, err := p.client.DefaultSink()
	if err != nil {
		return werrors.Wrap(werrors.KindAudioCapture, err, "resolve default sink")
	}

	collector := &pcmCollector{}
	stream, err := p.client.NewRecord(
		collector,
		pulse.RecordMonitor(sink),
		pulse.RecordStereo,
		pulse.RecordSampleRate(pulseSampleRate),
		pulse.RecordBufferFragmentSize(uint32(pulseFrameSamples*pulseChannels*2)),
	)
	if err != nil {
		return werrors.Wrap(werrors.KindAudioCapture, err, "open record stream")
	}
	p.stream = stream
	stream.Start()

	p.mu.Lock()
	p.active = true
	p.mu.Unlock()

	go p.run(collector)
	return nil
}

func (p *pulseCapture) run(collector *pcmCollector) {
	samplesPerFrame := pulseFrameSamples * pulseChannels
	ticker := time.NewTicker(pulseFrameMs * time.Millisecond)
	defer ticker.Stop()
	defer close(p.frames)

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			pcm := collector.drain(samplesPerFrame)
			if pcm == nil {
				continue
			}
			buf := make([]byte, len(pcm)*2)
			for i, s := range pcm {
				binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
			}
			frame := model.AudioFrame{
				Data:         buf,
				SampleRate:   pulseSampleRate,
				Channels:     model.ChannelLayoutStereo,
				SampleFormat: model.SampleFormatS16LE,
				PTS:          p.pts,
				NumSamples:   pulseFrameSamples,
			}
			p.pts += int64(pulseFrameSamples)
			select {
			case p.frames <- frame:
			default:
			}
		}
	}
}

func (p *pulseCapture) Stop() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	p.active = false
	p.mu.Unlock()

	close(p.done)
	if p.stream != nil {
		p.stream.Stop()
	}
	p.client.Close()
	return nil
}

func (p *pulseCapture) NextFrame() (model.AudioFrame, error) {
	select {
	case frame, ok := <-p.frames:
		if !ok {
			return model.AudioFrame{}, werrors.New(werrors.KindAudioCapture)
		}
		return frame, nil
	case <-time.After(captureTimeout):
		return model.AudioFrame{}, werrors.ErrTimeout
	}
}

func (p *pulseCapture) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Package output implements the delivery sinks (C5): a libavformat-backed
// file/RTMP/SRT muxer, a PipeWire virtual-camera source, and a multi-output
// fan-out wrapper.
package output

import (
	"log"
	"net/url"
	"os"
	"strconv"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

var logger = log.New(os.Stderr, "[output] ", log.LstdFlags)

// OutputSink consumes encoded elementary-stream packets.
type OutputSink interface {
	InitWithCodec(videoParams *model.CodecParams, audioParams *model.AudioParams) error
	Write(pkt *model.Packet) error
	WriteAudio(pkt *model.AudioPacket) error
	Finish() error
	BytesWritten() uint64
}

// RawOutputSink consumes raw, unencoded frames (the virtual-camera path).
type RawOutputSink interface {
	InitRaw(res model.Resolution, format model.FrameFormat) error
	WriteFrame(frame *model.Frame) error
	Finish() error
	BytesWritten() uint64
}

// New constructs the OutputSink described by cfg. Virtual-camera outputs
// are RawOutputSink only and must be requested through NewRaw instead.
func New(cfg config.Output) (OutputSink, error) {
	switch {
	case len(cfg.Multiple) > 0:
		return newMultiOutput(cfg.Multiple)
	case cfg.RTMPURL != "":
		return newNetworkMuxer(cfg.RTMPURL, "flv", rtmpOptions())
	case cfg.SRTURL != "":
		return newNetworkMuxer(buildSRTURL(cfg.SRTURL, cfg.SRT), "mpegts", nil)
	case cfg.FilePath != "":
		return newFileMuxer(cfg.FilePath, cfg.Container)
	default:
		return nil, werrors.New(werrors.KindOutputInit)
	}
}

// NewRaw constructs the RawOutputSink for cfg. Only the virtual-camera
// output speaks the raw-frame contract.
func NewRaw(cfg config.Output, name, description string) (RawOutputSink, error) {
	if !cfg.VirtualCamera {
		return nil, werrors.New(werrors.KindOutputInit)
	}
	return newVirtualCamera(name, description)
}

func rtmpOptions() map[string]string {
	return map[string]string{
		"flvflags":  "no_duration_filesize",
		"rtmp_live": "live",
	}
}

// buildSRTURL appends the SRT protocol's query parameters to base, clamping
// latency into [20, 8000] ms and omitting fields the caller left at their
// zero value.
func buildSRTURL(base string, opts config.SRTOptions) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}

	mode := opts.Mode
	if mode == "" {
		mode = config.SRTModeCaller
	}
	latency := opts.LatencyMs
	if latency < 20 {
		latency = 20
	} else if latency > 8000 {
		latency = 8000
	}

	q := u.Query()
	q.Set("mode", string(mode))
	q.Set("latency", strconv.Itoa(latency*1000))
	q.Set("transtype", "live")
	if opts.Passphrase != "" {
		q.Set("passphrase", opts.Passphrase)
	}
	if opts.StreamID != "" {
		q.Set("streamid", opts.StreamID)
	}
	if opts.PBKeyLen == 16 || opts.PBKeyLen == 24 || opts.PBKeyLen == 32 {
		q.Set("pbkeylen", strconv.Itoa(opts.PBKeyLen))
	}
	if opts.MaxBW != 0 {
		q.Set("maxbw", strconv.FormatInt(opts.MaxBW, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

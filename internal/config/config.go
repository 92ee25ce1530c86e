// Package config defines the capture, encoder, and output configuration
// types plus the named presets exposed through the "presets" subcommand.
package config

import "waycast/internal/model"

// CaptureBackend selects how frames are pulled off the compositor.
type CaptureBackend int

const (
	BackendAuto CaptureBackend = iota
	BackendPortal
	BackendPipeWire
	BackendWlrExport
)

func (b CaptureBackend) String() string {
	switch b {
	case BackendPortal:
		return "portal"
	case BackendPipeWire:
		return "pipewire"
	case BackendWlrExport:
		return "wlr-export"
	default:
		return "auto"
	}
}

// CaptureConfig configures the capture stage (C2).
type CaptureConfig struct {
	Framerate    model.Framerate
	ShowCursor   bool
	CaptureAudio bool
	Backend      CaptureBackend
	PreferDMABuf bool
}

// DefaultCaptureConfig matches the original implementation's defaults:
// 60fps, cursor visible, no audio, auto backend, DMA-BUF preferred.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Framerate:    model.Framerate60,
		ShowCursor:   true,
		CaptureAudio: false,
		Backend:      BackendAuto,
		PreferDMABuf: true,
	}
}

// RateControlMode is the encoder's bitrate control strategy.
type RateControlMode int

const (
	RateControlVBR RateControlMode = iota
	RateControlCBR
	RateControlCQP
	RateControlCRF
)

func (m RateControlMode) String() string {
	switch m {
	case RateControlCBR:
		return "cbr"
	case RateControlCQP:
		return "cqp"
	case RateControlCRF:
		return "crf"
	default:
		return "vbr"
	}
}

// RateControl bundles the mode with the numeric parameter CQP/CRF need.
// QP and CRF are ignored for CBR/VBR.
type RateControl struct {
	Mode RateControlMode
	QP   uint8
	CRF  uint8
}

// EncoderPreset trades encode speed against quality, independent of Tuning.
type EncoderPreset int

const (
	PresetMedium EncoderPreset = iota
	PresetFastest
	PresetFast
	PresetSlow
	PresetSlowest
)

// NVENCName returns the nvidia preset string the cgo NVENC backend expects.
func (p EncoderPreset) NVENCName() string {
	switch p {
	case PresetFastest:
		return "p1"
	case PresetFast:
		return "p3"
	case PresetSlow:
		return "p5"
	case PresetSlowest:
		return "p7"
	default:
		return "p4"
	}
}

func (p EncoderPreset) String() string {
	switch p {
	case PresetFastest:
		return "fastest"
	case PresetFast:
		return "fast"
	case PresetSlow:
		return "slow"
	case PresetSlowest:
		return "slowest"
	default:
		return "medium"
	}
}

// EncoderTuning is a separate axis from EncoderPreset: it maps to
// codec-specific knobs rather than a speed/quality tradeoff.
type EncoderTuning int

const (
	TuningHighQuality EncoderTuning = iota
	TuningLowLatency
	TuningUltraLowLatency
	TuningLossless
)

// NVENCName returns the nvidia tuning string the cgo NVENC backend expects.
func (t EncoderTuning) NVENCName() string {
	switch t {
	case TuningLowLatency:
		return "ll"
	case TuningUltraLowLatency:
		return "ull"
	case TuningLossless:
		return "lossless"
	default:
		return "hq"
	}
}

func (t EncoderTuning) String() string {
	switch t {
	case TuningLowLatency:
		return "low-latency"
	case TuningUltraLowLatency:
		return "ultra-low-latency"
	case TuningLossless:
		return "lossless"
	default:
		return "high-quality"
	}
}

// HDRConfig carries the static mastering metadata for an HDR session.
// A nil *HDRConfig on EncoderConfig means SDR.
type HDRConfig struct {
	Transfer     string // "pq" (HDR10) or "hlg"
	BitDepth     int
	MaxLuminance float64 // nits
	MaxCLL       int
	MaxFALL      int
}

// HDR10 returns the standard HDR10/PQ mastering defaults.
func HDR10() HDRConfig {
	return HDRConfig{Transfer: "pq", BitDepth: 10, MaxLuminance: 1000, MaxCLL: 1000, MaxFALL: 400}
}

// HLG returns the standard Hybrid Log-Gamma defaults.
func HLG() HDRConfig {
	return HDRConfig{Transfer: "hlg", BitDepth: 10}
}

func (h HDRConfig) IsHDR() bool { return h.Transfer != "" }

// EncoderBackend selects which family of encoder implementations
// candidateNames offers up, in order, to the backend's open().
type EncoderBackend string

const (
	// EncoderBackendAuto tries NVENC first and falls back to the
	// matching software encoder if no NVENC-capable device is present.
	EncoderBackendAuto EncoderBackend = "auto"
	// EncoderBackendNVENC requires hardware NVENC; open() fails rather
	// than falling back to software if NVENC is unavailable.
	EncoderBackendNVENC EncoderBackend = "nvenc"
	// EncoderBackendCPU forces the software encoder even when NVENC is
	// present.
	EncoderBackendCPU EncoderBackend = "cpu"
)

// EncoderConfig configures an encoder session (C4).
type EncoderConfig struct {
	Codec         model.CodecKind
	Resolution    *model.Resolution // nil: same as input
	Framerate     model.Framerate
	BitrateKbps   uint32
	MaxBitrateKbps uint32 // 0 = unset, only meaningful for VBR
	RateControl   RateControl
	Preset        EncoderPreset
	Tuning        EncoderTuning
	GOPSize       uint32
	BFrames       uint32
	Lookahead     uint32 // 0 = disabled
	PixelFormat   model.FrameFormat
	Profile       string
	Level         string
	HDR           *HDRConfig
	Backend       EncoderBackend // "" behaves like EncoderBackendAuto
}

// DefaultEncoderConfig matches the original implementation's Default impl.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Codec:       model.CodecH264,
		Framerate:   model.Framerate60,
		BitrateKbps: 6000,
		RateControl: RateControl{Mode: RateControlVBR},
		Preset:      PresetMedium,
		Tuning:      TuningHighQuality,
		GOPSize:     120,
		BFrames:     2,
		PixelFormat: model.FormatNV12,
	}
}

// IsHDR reports whether this config produces an HDR bitstream.
func (c EncoderConfig) IsHDR() bool {
	return c.HDR != nil && c.HDR.IsHDR()
}

// Container is a muxed output file format.
type Container int

const (
	ContainerMatroska Container = iota
	ContainerMP4
	ContainerWebM
	ContainerMPEGTS
)

func (c Container) String() string {
	switch c {
	case ContainerMP4:
		return "mp4"
	case ContainerWebM:
		return "webm"
	case ContainerMPEGTS:
		return "mpegts"
	default:
		return "matroska"
	}
}

// SRTMode is the SRT connection role.
type SRTMode string

const (
	SRTModeCaller     SRTMode = "caller"
	SRTModeListener   SRTMode = "listener"
	SRTModeRendezvous SRTMode = "rendezvous"
)

// SRTOptions configures the optional query parameters appended to an SRT
// output URL. Zero values are omitted except Mode, which defaults to caller,
// and LatencyMs, which is always clamped into [20, 8000]; both are always
// present, as is transtype=live.
type SRTOptions struct {
	Mode       SRTMode
	LatencyMs  int
	Passphrase string
	StreamID   string
	PBKeyLen   int // 0, 16, 24, or 32; 0 means "omit"
	MaxBW      int64
}

// Output names a delivery sink for encoded packets.
type Output struct {
	VirtualCamera bool
	FilePath      string
	Container     Container
	RTMPURL       string
	SRTURL        string
	SRT           SRTOptions
	Multiple      []Output
}

// Preset is a named, complete capture+encoder configuration bundle.
type Preset string

const (
	PresetDiscord720p     Preset = "discord720p"
	PresetStream1080p60   Preset = "stream1080p60"
	PresetQuality1440p60  Preset = "quality1440p60"
	PresetGaming1440p120  Preset = "gaming1440p120"
	PresetUltra4K60       Preset = "ultra4k60"
	PresetLowLatencyName  Preset = "lowlatency"
	PresetRecording       Preset = "recording"
	PresetHdr10_4K60      Preset = "hdr10-4k60"
)

// AllPresets lists every named preset in table order, for the "presets"
// subcommand.
var AllPresets = []Preset{
	PresetDiscord720p,
	PresetStream1080p60,
	PresetQuality1440p60,
	PresetGaming1440p120,
	PresetUltra4K60,
	PresetLowLatencyName,
	PresetRecording,
	PresetHdr10_4K60,
}

func res(w, h int) *model.Resolution {
	r := model.NewResolution(w, h)
	return &r
}

// EncoderConfig resolves a named preset into a full encoder configuration.
// Unknown names return the package default unchanged.
func (p Preset) EncoderConfig() EncoderConfig {
	switch p {
	case PresetDiscord720p:
		return EncoderConfig{
			Codec: model.CodecH264, Resolution: res(1280, 720), Framerate: model.Framerate30,
			BitrateKbps: 3000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetFast, Tuning: TuningLowLatency, GOPSize: 60,
			BFrames: 2, PixelFormat: model.FormatNV12,
		}
	case PresetStream1080p60:
		return EncoderConfig{
			Codec: model.CodecH264, Resolution: res(1920, 1080), Framerate: model.Framerate60,
			BitrateKbps: 6000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetMedium, Tuning: TuningHighQuality, GOPSize: 120,
			BFrames: 2, PixelFormat: model.FormatNV12,
		}
	case PresetQuality1440p60:
		return EncoderConfig{
			Codec: model.CodecHEVC, Resolution: res(2560, 1440), Framerate: model.Framerate60,
			BitrateKbps: 12000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetSlow, Tuning: TuningHighQuality, GOPSize: 120,
			BFrames: 2, PixelFormat: model.FormatNV12,
		}
	case PresetGaming1440p120:
		return EncoderConfig{
			Codec: model.CodecHEVC, Resolution: res(2560, 1440), Framerate: model.Framerate120,
			BitrateKbps: 15000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetFast, Tuning: TuningLowLatency, GOPSize: 240,
			BFrames: 2, PixelFormat: model.FormatNV12,
		}
	case PresetUltra4K60:
		return EncoderConfig{
			Codec: model.CodecAV1, Resolution: res(3840, 2160), Framerate: model.Framerate60,
			BitrateKbps: 25000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetSlow, Tuning: TuningHighQuality, GOPSize: 120,
			BFrames: 2, PixelFormat: model.FormatNV12,
		}
	case PresetLowLatencyName:
		return EncoderConfig{
			Codec: model.CodecH264, Resolution: nil, Framerate: model.Framerate60,
			BitrateKbps: 8000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetFastest, Tuning: TuningUltraLowLatency, GOPSize: 30,
			BFrames: 0, PixelFormat: model.FormatNV12,
		}
	case PresetRecording:
		return EncoderConfig{
			Codec: model.CodecHEVC, Resolution: nil, Framerate: model.Framerate60,
			BitrateKbps: 50000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetSlowest, Tuning: TuningHighQuality, GOPSize: 300,
			BFrames: 3, Lookahead: 20, PixelFormat: model.FormatNV12,
		}
	case PresetHdr10_4K60:
		hdr := HDR10()
		return EncoderConfig{
			Codec: model.CodecHEVC, Resolution: res(3840, 2160), Framerate: model.Framerate60,
			BitrateKbps: 35000, RateControl: RateControl{Mode: RateControlVBR},
			Preset: PresetSlow, Tuning: TuningHighQuality, GOPSize: 120,
			BFrames: 2, PixelFormat: model.FormatP010, Profile: "main10", HDR: &hdr,
		}
	default:
		return DefaultEncoderConfig()
	}
}

package model

// PacketFlags are bitwise flags carried alongside an encoded packet.
type PacketFlags uint32

const (
	PacketFlagNone PacketFlags = 0
	PacketFlagKey  PacketFlags = 1 << iota
)

// Packet is one elementary-stream unit produced by an Encoder.
// Invariant: DTS <= PTS; for codecs without B-frame reordering DTS == PTS.
type Packet struct {
	Data       []byte
	PTS        int64
	DTS        int64
	Duration   int64
	IsKeyframe bool
	Flags      PacketFlags
}

// Size returns len(Data).
func (p Packet) Size() int {
	return len(p.Data)
}

// CodecKind identifies the elementary-stream codec.
type CodecKind int

const (
	CodecUnknown CodecKind = iota
	CodecH264
	CodecHEVC
	CodecAV1
)

func (c CodecKind) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	case CodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

// CodecParams describes the codec configuration needed to initialize a
// container muxer. It is produced exactly once per encoder session, after
// the first packet, so extradata (SPS/PPS/VPS/OBU headers) is populated.
type CodecParams struct {
	Codec       CodecKind
	PixelFormat FrameFormat
	Extradata   []byte
	Resolution  Resolution
	Framerate   Framerate
	TimeBaseNum int
	TimeBaseDen int
	BitrateBPS  int64
}

// DefaultCodecParams is the fallback used when the encoder fails before
// producing a packet and the output sink tolerates an unresolved codec
// (file variants only — see pipeline orchestrator).
func DefaultCodecParams() CodecParams {
	return CodecParams{
		Codec:       CodecH264,
		PixelFormat: FormatYUV420P,
		Resolution:  Resolution1080p,
		Framerate:   Framerate60,
		TimeBaseNum: 1,
		TimeBaseDen: 1000,
		BitrateBPS:  6_000_000,
	}
}

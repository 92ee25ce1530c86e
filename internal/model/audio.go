package model

// SampleFormat identifies the PCM sample layout of an AudioFrame.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatS16LE
	SampleFormatF32
)

// ChannelLayout names a speaker layout.
type ChannelLayout int

const (
	ChannelLayoutMono ChannelLayout = iota
	ChannelLayoutStereo
)

// Channels returns the channel count for the layout.
func (c ChannelLayout) Channels() int {
	if c == ChannelLayoutMono {
		return 1
	}
	return 2
}

// AudioFrame is one block of raw PCM audio captured from the system mixer.
// PTS is expressed in samples, not microseconds — the muxer rescales it
// against the stream's 1/sample_rate time base.
type AudioFrame struct {
	Data         []byte
	SampleRate   int
	Channels     ChannelLayout
	SampleFormat SampleFormat
	PTS          int64
	NumSamples   int
}

// AudioCodecKind identifies the audio elementary-stream codec.
type AudioCodecKind int

const (
	AudioCodecUnknown AudioCodecKind = iota
	AudioCodecAAC
	AudioCodecOpus
)

func (c AudioCodecKind) String() string {
	switch c {
	case AudioCodecAAC:
		return "aac"
	case AudioCodecOpus:
		return "opus"
	default:
		return "unknown"
	}
}

// AudioPacket is one encoded audio elementary-stream unit.
type AudioPacket struct {
	Data []byte
	PTS  int64
	DTS  int64
}

// AudioParams describes the audio codec configuration needed by a muxer,
// analogous to CodecParams for video.
type AudioParams struct {
	Codec      AudioCodecKind
	Extradata  []byte
	SampleRate int
	Channels   ChannelLayout
	BitrateBPS int64
}

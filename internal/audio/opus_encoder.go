package audio

import (
	"encoding/binary"

	"github.com/hraban/opus"

	"waycast/internal/model"
	"waycast/internal/werrors"
)

// opusBackend wraps libopus through hraban/opus, the teacher's own audio
// codec dependency — generalized here from a capture-embedded encode loop
// into a standalone Encoder the pipeline drives explicitly.
type opusBackend struct {
	enc        *opus.Encoder
	sampleRate int
	channels   model.ChannelLayout
	bitrateBPS int64
	buf        []byte
}

func newOpusEncoder(sampleRate int, channels model.ChannelLayout, bitrateBPS int64) (Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels.Channels(), opus.AppAudio)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindAudioEncoder, err, "create opus encoder")
	}
	if bitrateBPS > 0 {
		if err := enc.SetBitrate(int(bitrateBPS)); err != nil {
			return nil, werrors.Wrap(werrors.KindAudioEncoder, err, "set opus bitrate")
		}
	}
	return &opusBackend{
		enc: enc, sampleRate: sampleRate, channels: channels, bitrateBPS: bitrateBPS,
		buf: make([]byte, 4000),
	}, nil
}

func (o *opusBackend) Encode(frame model.AudioFrame) (*model.AudioPacket, error) {
	pcm := bytesToInt16(frame.Data)
	n, err := o.enc.Encode(pcm, o.buf)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindAudioEncoder, err, "opus encode")
	}
	return &model.AudioPacket{
		Data: append([]byte(nil), o.buf[:n]...),
		PTS:  frame.PTS,
		DTS:  frame.PTS,
	}, nil
}

// Flush is a no-op: opus has no reordering delay that needs draining the
// way a video GOP does.
func (o *opusBackend) Flush() ([]model.AudioPacket, error) { return nil, nil }

func (o *opusBackend) Params() *model.AudioParams {
	return &model.AudioParams{
		Codec:      model.AudioCodecOpus,
		SampleRate: o.sampleRate,
		Channels:   o.channels,
		BitrateBPS: o.bitrateBPS,
	}
}

func (o *opusBackend) Close() {}

func bytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return out
}

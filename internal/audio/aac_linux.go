//go:build linux

package audio

/*
#cgo pkg-config: libavcodec libavutil
#include <libavcodec/avcodec.h>
#include <libavutil/opt.h>
#include <libavutil/channel_layout.h>
#include <stdlib.h>

typedef struct {
	AVCodecContext *ctx;
	AVFrame *frame;
	AVPacket *pkt;
	int64_t pts;
} WcAACEncoder;

static WcAACEncoder *wc_aac_open(int sample_rate, int channels, int64_t bitrate_bps) {
	const AVCodec *codec = avcodec_find_encoder(AV_CODEC_ID_AAC);
	if (!codec) return NULL;

	WcAACEncoder *e = (WcAACEncoder*)calloc(1, sizeof(WcAACEncoder));
	if (!e) return NULL;

	e->ctx = avcodec_alloc_context3(codec);
	if (!e->ctx) { free(e); return NULL; }

	e->ctx->sample_rate = sample_rate;
	e->ctx->bit_rate = bitrate_bps;
	e->ctx->sample_fmt = AV_SAMPLE_FMT_FLTP;
	e->ctx->time_base = (AVRational){1, sample_rate};
	e->ctx->flags |= AV_CODEC_FLAG_GLOBAL_HEADER;
#if LIBAVUTIL_VERSION_MAJOR >= 57
	AVChannelLayout layout;
	av_channel_layout_default(&layout, channels);
	e->ctx->ch_layout = layout;
#else
	e->ctx->channels = channels;
	e->ctx->channel_layout = av_get_default_channel_layout(channels);
#endif

	if (avcodec_open2(e->ctx, codec, NULL) < 0) {
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->frame = av_frame_alloc();
	e->frame->format = e->ctx->sample_fmt;
	e->frame->sample_rate = sample_rate;
	e->frame->nb_samples = e->ctx->frame_size;
#if LIBAVUTIL_VERSION_MAJOR >= 57
	e->frame->ch_layout = e->ctx->ch_layout;
#else
	e->frame->channels = channels;
	e->frame->channel_layout = e->ctx->channel_layout;
#endif
	if (av_frame_get_buffer(e->frame, 0) < 0) {
		avcodec_free_context(&e->ctx);
		av_frame_free(&e->frame);
		free(e);
		return NULL;
	}

	e->pkt = av_packet_alloc();
	return e;
}

static int wc_aac_frame_size(WcAACEncoder *e) { return e->ctx->frame_size; }

static void wc_aac_fill_planar(WcAACEncoder *e, const float *left, const float *right) {
	av_frame_make_writable(e->frame);
	memcpy(e->frame->data[0], left, sizeof(float) * e->frame->nb_samples);
	if (right != NULL) {
		memcpy(e->frame->data[1], right, sizeof(float) * e->frame->nb_samples);
	}
}

static int wc_aac_send_and_receive(WcAACEncoder *e, int send_frame,
                                    uint8_t **out_buf, int *out_size) {
	*out_size = 0;
	int ret;
	if (send_frame) {
		e->frame->pts = e->pts;
		e->pts += e->frame->nb_samples;
		ret = avcodec_send_frame(e->ctx, e->frame);
	} else {
		ret = avcodec_send_frame(e->ctx, NULL);
	}
	if (ret < 0 && ret != AVERROR_EOF) return -1;

	ret = avcodec_receive_packet(e->ctx, e->pkt);
	if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) return 0;
	if (ret < 0) return -1;

	*out_buf = e->pkt->data;
	*out_size = e->pkt->size;
	return 0;
}

static void wc_aac_unref(WcAACEncoder *e) { av_packet_unref(e->pkt); }

static uint8_t *wc_aac_extradata(WcAACEncoder *e, int *size) {
	*size = e->ctx->extradata_size;
	return e->ctx->extradata;
}

static void wc_aac_destroy(WcAACEncoder *e) {
	if (!e) return;
	if (e->pkt) av_packet_free(&e->pkt);
	if (e->frame) av_frame_free(&e->frame);
	if (e->ctx) avcodec_free_context(&e->ctx);
	free(e);
}
*/
import "C"

import (
	"unsafe"

	"waycast/internal/model"
	"waycast/internal/werrors"
)

// aacBackend drives libavcodec's native AAC encoder, which requires planar
// float samples — deinterleaving and int16-to-float conversion happen on
// the Go side before each C.wc_aac_fill_planar call.
type aacBackend struct {
	enc        *C.WcAACEncoder
	sampleRate int
	channels   model.ChannelLayout
	bitrateBPS int64
	frameSize  int
	extra      []byte
}

func newAACEncoder(sampleRate int, channels model.ChannelLayout, bitrateBPS int64) (Encoder, error) {
	enc := C.wc_aac_open(C.int(sampleRate), C.int(channels.Channels()), C.int64_t(bitrateBPS))
	if enc == nil {
		return nil, werrors.Newf(werrors.KindAudioEncoder, "audio: libavcodec aac encoder unavailable")
	}
	return &aacBackend{
		enc: enc, sampleRate: sampleRate, channels: channels, bitrateBPS: bitrateBPS,
		frameSize: int(C.wc_aac_frame_size(enc)),
	}, nil
}

func (a *aacBackend) Encode(frame model.AudioFrame) (*model.AudioPacket, error) {
	pcm := bytesToInt16(frame.Data)
	left, right := deinterleave(pcm, a.channels.Channels(), a.frameSize)

	leftPtr := (*C.float)(unsafe.Pointer(&left[0]))
	var rightPtr *C.float
	if right != nil {
		rightPtr = (*C.float)(unsafe.Pointer(&right[0]))
	}
	C.wc_aac_fill_planar(a.enc, leftPtr, rightPtr)

	var outBuf *C.uint8_t
	var outSize C.int
	if C.wc_aac_send_and_receive(a.enc, 1, &outBuf, &outSize) != 0 {
		return nil, werrors.Newf(werrors.KindAudioEncoder, "aac send/receive failed")
	}
	if outSize == 0 {
		if a.extra == nil {
			a.captureExtradata()
		}
		return nil, nil
	}
	data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
	C.wc_aac_unref(a.enc)
	if a.extra == nil {
		a.captureExtradata()
	}
	return &model.AudioPacket{Data: data, PTS: frame.PTS, DTS: frame.PTS}, nil
}

func (a *aacBackend) captureExtradata() {
	var size C.int
	ptr := C.wc_aac_extradata(a.enc, &size)
	if ptr != nil && size > 0 {
		a.extra = C.GoBytes(unsafe.Pointer(ptr), size)
	}
}

func (a *aacBackend) Flush() ([]model.AudioPacket, error) {
	var out []model.AudioPacket
	for {
		var outBuf *C.uint8_t
		var outSize C.int
		if C.wc_aac_send_and_receive(a.enc, 0, &outBuf, &outSize) != 0 {
			return out, werrors.Newf(werrors.KindAudioEncoder, "aac flush failed")
		}
		if outSize == 0 {
			break
		}
		data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
		C.wc_aac_unref(a.enc)
		out = append(out, model.AudioPacket{Data: data})
	}
	return out, nil
}

func (a *aacBackend) Params() *model.AudioParams {
	return &model.AudioParams{
		Codec:      model.AudioCodecAAC,
		Extradata:  a.extra,
		SampleRate: a.sampleRate,
		Channels:   a.channels,
		BitrateBPS: a.bitrateBPS,
	}
}

func (a *aacBackend) Close() {
	if a.enc != nil {
		C.wc_aac_destroy(a.enc)
		a.enc = nil
	}
}

// deinterleave splits interleaved S16 PCM into up to two float32 planes,
// converting to [-1, 1] range and zero-padding to frameSize samples.
func deinterleave(pcm []int16, channels, frameSize int) ([]float32, []float32) {
	left := make([]float32, frameSize)
	var right []float32
	if channels > 1 {
		right = make([]float32, frameSize)
	}
	for i := 0; i < frameSize; i++ {
		idx := i * channels
		if idx >= len(pcm) {
			break
		}
		left[i] = float32(pcm[idx]) / 32768.0
		if right != nil && idx+1 < len(pcm) {
			right[i] = float32(pcm[idx+1]) / 32768.0
		}
	}
	return left, right
}

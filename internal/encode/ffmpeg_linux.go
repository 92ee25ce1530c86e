//go:build linux

package encode

/*
#cgo pkg-config: libavcodec libavutil
#include <libavcodec/avcodec.h>
#include <libavutil/opt.h>
#include <libavutil/imgutils.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	AVCodecContext *ctx;
	AVFrame *frame;
	AVPacket *pkt;
	int width;
	int height;
	int64_t pts;
} WcEncoder;

static WcEncoder *wc_encoder_open(const char *codec_name, int width, int height, int pix_fmt,
                                   int fps_num, int fps_den, int64_t bitrate_bps, int64_t max_bitrate_bps,
                                   int gop, int bframes, const char *rc_mode, int qp, int crf,
                                   const char *preset, const char *tune, const char *profile, int lookahead) {
	const AVCodec *codec = avcodec_find_encoder_by_name(codec_name);
	if (!codec) return NULL;

	WcEncoder *e = (WcEncoder*)calloc(1, sizeof(WcEncoder));
	if (!e) return NULL;
	e->width = width;
	e->height = height;

	e->ctx = avcodec_alloc_context3(codec);
	if (!e->ctx) { free(e); return NULL; }

	e->ctx->width = width;
	e->ctx->height = height;
	// Microsecond time base: frame PTS values arriving from capture are
	// already wall-clock microseconds, so this avoids a lossy rescale and
	// lets the muxer's own rescale step be the only one in the path.
	e->ctx->time_base = (AVRational){1, 1000000};
	e->ctx->framerate = (AVRational){fps_num, fps_den};
	e->ctx->pix_fmt = pix_fmt;
	e->ctx->gop_size = gop;
	e->ctx->max_b_frames = bframes;
	e->ctx->flags |= AV_CODEC_FLAG_GLOBAL_HEADER;

	if (strcmp(rc_mode, "cbr") == 0) {
		e->ctx->bit_rate = bitrate_bps;
		e->ctx->rc_min_rate = bitrate_bps;
		e->ctx->rc_max_rate = bitrate_bps;
		e->ctx->rc_buffer_size = (int)(bitrate_bps / 4);
	} else if (strcmp(rc_mode, "vbr") == 0) {
		e->ctx->bit_rate = bitrate_bps;
		if (max_bitrate_bps > 0) {
			e->ctx->rc_max_rate = max_bitrate_bps;
		}
	} else if (strcmp(rc_mode, "cqp") == 0) {
		av_opt_set_int(e->ctx->priv_data, "qp", qp, 0);
		e->ctx->flags |= AV_CODEC_FLAG_QSCALE;
	} else if (strcmp(rc_mode, "crf") == 0) {
		av_opt_set_int(e->ctx->priv_data, "crf", crf, 0);
	}

	if (preset && preset[0]) av_opt_set(e->ctx->priv_data, "preset", preset, 0);
	if (tune && tune[0]) av_opt_set(e->ctx->priv_data, "tune", tune, 0);
	if (profile && profile[0]) av_opt_set(e->ctx->priv_data, "profile", profile, 0);
	if (lookahead > 0) av_opt_set_int(e->ctx->priv_data, "rc-lookahead", lookahead, 0);

	if (avcodec_open2(e->ctx, codec, NULL) < 0) {
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->frame = av_frame_alloc();
	e->frame->format = e->ctx->pix_fmt;
	e->frame->width = width;
	e->frame->height = height;
	if (av_frame_get_buffer(e->frame, 0) < 0) {
		avcodec_free_context(&e->ctx);
		av_frame_free(&e->frame);
		free(e);
		return NULL;
	}

	e->pkt = av_packet_alloc();
	return e;
}

// wc_encoder_fill_nv12 copies an interleaved-UV NV12 (or P010, 2-byte
// samples) source buffer into the backend frame's Y and UV planes.
static void wc_encoder_fill_nv12(WcEncoder *e, const uint8_t *y, int y_stride,
                                  const uint8_t *uv, int uv_stride, int sample_bytes) {
	av_frame_make_writable(e->frame);
	int row_bytes = e->width * sample_bytes;
	for (int row = 0; row < e->height; row++) {
		memcpy(e->frame->data[0] + row * e->frame->linesize[0], y + row * y_stride, row_bytes);
	}
	for (int row = 0; row < e->height / 2; row++) {
		memcpy(e->frame->data[1] + row * e->frame->linesize[1], uv + row * uv_stride, row_bytes);
	}
}

// wc_encoder_fill_yuv420p copies three planar Y/U/V buffers into the frame.
static void wc_encoder_fill_yuv420p(WcEncoder *e,
                                     const uint8_t *y, int ys, const uint8_t *u, int us, const uint8_t *v, int vs) {
	av_frame_make_writable(e->frame);
	for (int row = 0; row < e->height; row++) {
		memcpy(e->frame->data[0] + row * e->frame->linesize[0], y + row * ys, e->width);
	}
	for (int row = 0; row < e->height / 2; row++) {
		memcpy(e->frame->data[1] + row * e->frame->linesize[1], u + row * us, e->width / 2);
		memcpy(e->frame->data[2] + row * e->frame->linesize[2], v + row * vs, e->width / 2);
	}
}

// wc_encoder_send_and_receive submits the backend frame stamped with
// frame_pts_us (the originating capture frame's wall-clock microsecond
// PTS) and polls one packet. libavcodec reorders pts/dts internally for
// B-frames as long as frame->pts is monotone in submission order, which
// wall-clock capture timestamps already are.
static int wc_encoder_send_and_receive(WcEncoder *e, int send_frame, int64_t frame_pts_us,
                                        uint8_t **out_buf, int *out_size, int *is_key,
                                        int64_t *out_pts, int64_t *out_dts) {
	*out_size = 0;
	int ret;
	if (send_frame) {
		e->frame->pts = frame_pts_us;
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
	*is_key = (e->pkt->flags & AV_PKT_FLAG_KEY) ? 1 : 0;
	*out_pts = e->pkt->pts;
	*out_dts = e->pkt->dts;
	return 0;
}

static void wc_encoder_unref(WcEncoder *e) { av_packet_unref(e->pkt); }

static uint8_t *wc_encoder_extradata(WcEncoder *e, int *size) {
	*size = e->ctx->extradata_size;
	return e->ctx->extradata;
}

static void wc_encoder_destroy(WcEncoder *e) {
	if (!e) return;
	if (e->pkt) av_packet_free(&e->pkt);
	if (e->frame) av_frame_free(&e->frame);
	if (e->ctx) avcodec_free_context(&e->ctx);
	free(e);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"waycast/internal/config"
	"waycast/internal/model"
)

// ffmpegBackend drives libavcodec directly: software x264/x265/aom
// encoders by default, with NVENC names tried first so a CUDA-capable
// host gets hardware encoding for free.
type ffmpegBackend struct {
	enc    *C.WcEncoder
	width  int
	height int
	format model.FrameFormat
}

func newBackend(cfg config.EncoderConfig) (backend, error) {
	return &ffmpegBackend{format: cfg.PixelFormat}, nil
}

func candidateNames(codec model.CodecKind, backend config.EncoderBackend) []string {
	var nvenc, software []string
	switch codec {
	case model.CodecHEVC:
		nvenc, software = []string{"hevc_nvenc"}, []string{"libx265"}
	case model.CodecAV1:
		nvenc, software = []string{"av1_nvenc"}, []string{"libsvtav1", "libaom-av1"}
	default:
		nvenc, software = []string{"h264_nvenc"}, []string{"libx264"}
	}

	switch backend {
	case config.EncoderBackendNVENC:
		return nvenc
	case config.EncoderBackendCPU:
		return software
	default:
		return append(append([]string{}, nvenc...), software...)
	}
}

func rcModeString(rc config.RateControl) string {
	switch rc.Mode {
	case config.RateControlCBR:
		return "cbr"
	case config.RateControlCQP:
		return "cqp"
	case config.RateControlCRF:
		return "crf"
	default:
		return "vbr"
	}
}

func presetString(p config.EncoderPreset, codecName string) string {
	if codecName == "h264_nvenc" || codecName == "hevc_nvenc" || codecName == "av1_nvenc" {
		return p.NVENCName()
	}
	switch p {
	case config.PresetFastest:
		return "ultrafast"
	case config.PresetFast:
		return "fast"
	case config.PresetSlow:
		return "slow"
	case config.PresetSlowest:
		return "veryslow"
	default:
		return "medium"
	}
}

func tuneString(t config.EncoderTuning, codecName string) string {
	if codecName == "h264_nvenc" || codecName == "hevc_nvenc" || codecName == "av1_nvenc" {
		return t.NVENCName()
	}
	switch t {
	case config.TuningLowLatency, config.TuningUltraLowLatency:
		return "zerolatency"
	default:
		return ""
	}
}

func pixFmtC(f model.FrameFormat) C.int {
	if f == model.FormatP010 {
		return C.AV_PIX_FMT_P010LE
	}
	if f == model.FormatYUV420P {
		return C.AV_PIX_FMT_YUV420P
	}
	return C.AV_PIX_FMT_NV12
}

func (b *ffmpegBackend) open(width, height int, cfg config.EncoderConfig) error {
	b.width, b.height = width, height
	b.format = cfg.PixelFormat
	if b.format == model.FormatUnknown {
		b.format = model.FormatNV12
	}

	var lastErr error
	for _, name := range candidateNames(cfg.Codec, cfg.Backend) {
		cName := C.CString(name)
		cPreset := C.CString(presetString(cfg.Preset, name))
		cTune := C.CString(tuneString(cfg.Tuning, name))
		cProfile := C.CString(cfg.Profile)
		cRC := C.CString(rcModeString(cfg.RateControl))

		enc := C.wc_encoder_open(
			cName, C.int(width), C.int(height), pixFmtC(b.format),
			C.int(cfg.Framerate.Num), C.int(cfg.Framerate.Den),
			C.int64_t(int64(cfg.BitrateKbps)*1000), C.int64_t(int64(cfg.MaxBitrateKbps)*1000),
			C.int(cfg.GOPSize), C.int(cfg.BFrames),
			cRC, C.int(cfg.RateControl.QP), C.int(cfg.RateControl.CRF),
			cPreset, cTune, cProfile, C.int(cfg.Lookahead),
		)
		C.free(unsafe.Pointer(cName))
		C.free(unsafe.Pointer(cPreset))
		C.free(unsafe.Pointer(cTune))
		C.free(unsafe.Pointer(cProfile))
		C.free(unsafe.Pointer(cRC))

		if enc != nil {
			b.enc = enc
			return nil
		}
		lastErr = fmt.Errorf("encoder backend %q unavailable", name)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate encoder for codec %s", cfg.Codec)
	}
	return lastErr
}

// encode submits frame stamped with its own capture-assigned PTS (already
// wall-clock microseconds, matching the encoder's 1/1000000 time base) so
// the returned packet's timestamps trace back to the originating frame
// even across B-frame reordering.
func (b *ffmpegBackend) encode(frame *model.Frame) ([]byte, bool, int64, int64, error) {
	if b.enc == nil {
		return nil, false, 0, 0, fmt.Errorf("encoder not bound")
	}
	if err := b.fillFrame(frame); err != nil {
		return nil, false, 0, 0, err
	}

	var outBuf *C.uint8_t
	var outSize C.int
	var isKey C.int
	var outPTS, outDTS C.int64_t
	ret := C.wc_encoder_send_and_receive(b.enc, 1, C.int64_t(frame.PTS), &outBuf, &outSize, &isKey, &outPTS, &outDTS)
	if ret != 0 {
		return nil, false, 0, 0, fmt.Errorf("avcodec send/receive failed")
	}
	if outSize == 0 {
		return nil, false, 0, 0, nil
	}
	data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
	C.wc_encoder_unref(b.enc)
	return data, isKey != 0, int64(outPTS), int64(outDTS), nil
}

// fillFrame copies the caller's planar/interleaved buffer into the backend
// AVFrame. It assumes frame.Format already matches the negotiated encoder
// pixel format — the process stage is responsible for conversion.
func (b *ffmpegBackend) fillFrame(frame *model.Frame) error {
	sampleBytes := 1
	if frame.Format == model.FormatP010 {
		sampleBytes = 2
	}

	switch frame.Format {
	case model.FormatNV12, model.FormatP010:
		lumaSize := frame.Stride * frame.Height
		if len(frame.Data) < lumaSize {
			return fmt.Errorf("frame buffer too small for luma plane")
		}
		yPtr := (*C.uint8_t)(unsafe.Pointer(&frame.Data[0]))
		uvPtr := (*C.uint8_t)(unsafe.Pointer(&frame.Data[lumaSize]))
		C.wc_encoder_fill_nv12(b.enc, yPtr, C.int(frame.Stride), uvPtr, C.int(frame.Stride), C.int(sampleBytes))
	case model.FormatYUV420P:
		ySize := frame.Stride * frame.Height
		cStride := frame.Stride / 2
		cSize := cStride * (frame.Height / 2)
		if len(frame.Data) < ySize+2*cSize {
			return fmt.Errorf("frame buffer too small for planar YUV420P")
		}
		yPtr := (*C.uint8_t)(unsafe.Pointer(&frame.Data[0]))
		uPtr := (*C.uint8_t)(unsafe.Pointer(&frame.Data[ySize]))
		vPtr := (*C.uint8_t)(unsafe.Pointer(&frame.Data[ySize+cSize]))
		C.wc_encoder_fill_yuv420p(b.enc, yPtr, C.int(frame.Stride), uPtr, C.int(cStride), vPtr, C.int(cStride))
	default:
		return fmt.Errorf("unsupported encoder input format %s", frame.Format)
	}
	return nil
}

func (b *ffmpegBackend) flush() ([][]byte, []bool, []int64, []int64, error) {
	if b.enc == nil {
		return nil, nil, nil, nil, nil
	}
	var datas [][]byte
	var keys []bool
	var ptss, dtss []int64
	for {
		var outBuf *C.uint8_t
		var outSize C.int
		var isKey C.int
		var outPTS, outDTS C.int64_t
		ret := C.wc_encoder_send_and_receive(b.enc, 0, 0, &outBuf, &outSize, &isKey, &outPTS, &outDTS)
		if ret != 0 {
			return datas, keys, ptss, dtss, fmt.Errorf("flush failed")
		}
		if outSize == 0 {
			break
		}
		datas = append(datas, C.GoBytes(unsafe.Pointer(outBuf), outSize))
		keys = append(keys, isKey != 0)
		ptss = append(ptss, int64(outPTS))
		dtss = append(dtss, int64(outDTS))
		C.wc_encoder_unref(b.enc)
	}
	return datas, keys, ptss, dtss, nil
}

func (b *ffmpegBackend) extradata() []byte {
	if b.enc == nil {
		return nil
	}
	var size C.int
	ptr := C.wc_encoder_extradata(b.enc, &size)
	if ptr == nil || size == 0 {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(ptr), size)
}

func (b *ffmpegBackend) close() {
	if b.enc != nil {
		C.wc_encoder_destroy(b.enc)
		b.enc = nil
	}
}

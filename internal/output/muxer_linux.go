//go:build linux

package output

/*
#cgo pkg-config: libavformat libavcodec libavutil
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libavutil/opt.h>
#include <libavutil/channel_layout.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	AVFormatContext *ctx;
	AVDictionary *opts;
	int video_stream;
	int audio_stream;
} WcMuxer;

static WcMuxer *wc_muxer_open(const char *url, const char *format_name, const char *opts_str) {
	WcMuxer *m = (WcMuxer*)calloc(1, sizeof(WcMuxer));
	if (!m) return NULL;
	m->video_stream = -1;
	m->audio_stream = -1;

	int ret = avformat_alloc_output_context2(&m->ctx, NULL, format_name, url);
	if (ret < 0 || !m->ctx) { free(m); return NULL; }

	if (opts_str && opts_str[0]) {
		av_dict_parse_string(&m->opts, opts_str, "=", ":", 0);
	}

	if (!(m->ctx->oformat->flags & AVFMT_NOFILE)) {
		AVDictionary *io_opts = NULL;
		av_dict_copy(&io_opts, m->opts, 0);
		ret = avio_open2(&m->ctx->pb, url, AVIO_FLAG_WRITE, NULL, &io_opts);
		av_dict_free(&io_opts);
		if (ret < 0) {
			av_dict_free(&m->opts);
			avformat_free_context(m->ctx);
			free(m);
			return NULL;
		}
	}
	return m;
}

static int wc_muxer_add_video_stream(WcMuxer *m, int codec_id, int width, int height,
                                      int pix_fmt, int64_t bitrate_bps,
                                      const uint8_t *extradata, int extradata_size,
                                      int tb_num, int tb_den, int fps_num, int fps_den) {
	AVStream *st = avformat_new_stream(m->ctx, NULL);
	if (!st) return -1;
	st->time_base = (AVRational){tb_num, tb_den};
	st->avg_frame_rate = (AVRational){fps_num, fps_den};
	st->codecpar->codec_type = AVMEDIA_TYPE_VIDEO;
	st->codecpar->codec_id = codec_id;
	st->codecpar->width = width;
	st->codecpar->height = height;
	st->codecpar->format = pix_fmt;
	st->codecpar->bit_rate = bitrate_bps;
	if (extradata_size > 0) {
		st->codecpar->extradata = (uint8_t*)av_mallocz(extradata_size + AV_INPUT_BUFFER_PADDING_SIZE);
		memcpy(st->codecpar->extradata, extradata, extradata_size);
		st->codecpar->extradata_size = extradata_size;
	}
	m->video_stream = st->index;
	return st->index;
}

static int wc_muxer_add_audio_stream(WcMuxer *m, int codec_id, int sample_rate, int channels,
                                      int64_t bitrate_bps, const uint8_t *extradata, int extradata_size) {
	AVStream *st = avformat_new_stream(m->ctx, NULL);
	if (!st) return -1;
	st->time_base = (AVRational){1, sample_rate};
	st->codecpar->codec_type = AVMEDIA_TYPE_AUDIO;
	st->codecpar->codec_id = codec_id;
	st->codecpar->sample_rate = sample_rate;
	st->codecpar->bit_rate = bitrate_bps;
#if LIBAVUTIL_VERSION_MAJOR >= 57
	av_channel_layout_default(&st->codecpar->ch_layout, channels);
#else
	st->codecpar->channels = channels;
	st->codecpar->channel_layout = av_get_default_channel_layout(channels);
#endif
	if (extradata_size > 0) {
		st->codecpar->extradata = (uint8_t*)av_mallocz(extradata_size + AV_INPUT_BUFFER_PADDING_SIZE);
		memcpy(st->codecpar->extradata, extradata, extradata_size);
		st->codecpar->extradata_size = extradata_size;
	}
	m->audio_stream = st->index;
	return st->index;
}

static int wc_muxer_write_header(WcMuxer *m) {
	int ret = avformat_write_header(m->ctx, &m->opts);
	if (m->opts) { av_dict_free(&m->opts); m->opts = NULL; }
	return ret;
}

static int wc_muxer_write_packet(WcMuxer *m, int stream_index, const uint8_t *data, int size,
                                  int64_t pts, int64_t dts, int64_t duration, int is_key,
                                  int64_t tb_num, int64_t tb_den) {
	AVPacket *pkt = av_packet_alloc();
	if (!pkt) return -1;
	if (av_new_packet(pkt, size) < 0) { av_packet_free(&pkt); return -1; }
	memcpy(pkt->data, data, size);
	pkt->stream_index = stream_index;

	AVRational src_tb = (AVRational){(int)tb_num, (int)tb_den};
	AVStream *st = m->ctx->streams[stream_index];
	pkt->pts = av_rescale_q(pts, src_tb, st->time_base);
	pkt->dts = av_rescale_q(dts, src_tb, st->time_base);
	pkt->duration = av_rescale_q(duration, src_tb, st->time_base);
	if (is_key) pkt->flags |= AV_PKT_FLAG_KEY;

	int ret = av_interleaved_write_frame(m->ctx, pkt);
	av_packet_free(&pkt);
	return ret;
}

static int wc_muxer_write_trailer(WcMuxer *m) {
	return av_write_trailer(m->ctx);
}

static int64_t wc_muxer_bytes_written(WcMuxer *m) {
	if (!m->ctx || !m->ctx->pb) return 0;
	int64_t pos = avio_tell(m->ctx->pb);
	return pos > 0 ? pos : 0;
}

static void wc_muxer_close(WcMuxer *m) {
	if (!m) return;
	if (m->ctx) {
		if (m->ctx->pb && !(m->ctx->oformat->flags & AVFMT_NOFILE)) {
			avio_closep(&m->ctx->pb);
		}
		avformat_free_context(m->ctx);
	}
	if (m->opts) av_dict_free(&m->opts);
	free(m);
}
*/
import "C"

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// muxer is the shared libavformat-backed OutputSink for the file, RTMP,
// and SRT variants (C5.a/b/c/d) — they differ only in URL/container/
// protocol options, not in stream setup or write logic.
type muxer struct {
	mu              sync.Mutex
	c               *C.WcMuxer
	url             string
	headerDone      bool
	bytesWritten    uint64
	audioSampleRate int
}

func newFileMuxer(path string, container config.Container) (OutputSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, werrors.Wrap(werrors.KindFileOutput, err, "create output directory")
	}
	return openMuxer(path, containerFormatName(container), "")
}

func newNetworkMuxer(url, formatName string, opts map[string]string) (OutputSink, error) {
	kind := werrors.KindStreaming
	if strings.HasPrefix(url, "rtmp") {
		kind = werrors.KindRtmp
	} else if strings.HasPrefix(url, "srt") {
		kind = werrors.KindSrt
	}
	sink, err := openMuxer(url, formatName, optsString(opts))
	if err != nil {
		return nil, werrors.Wrapf(kind, err, "open network output %s", maskStreamKey(url))
	}
	return sink, nil
}

func openMuxer(url, formatName, opts string) (OutputSink, error) {
	cURL := C.CString(url)
	cFormat := C.CString(formatName)
	cOpts := C.CString(opts)
	defer C.free(unsafe.Pointer(cURL))
	defer C.free(unsafe.Pointer(cFormat))
	defer C.free(unsafe.Pointer(cOpts))

	c := C.wc_muxer_open(cURL, cFormat, cOpts)
	if c == nil {
		return nil, werrors.Newf(werrors.KindMuxer, "open output context for %s (%s)", maskStreamKey(url), formatName)
	}
	return &muxer{c: c, url: url}, nil
}

func containerFormatName(c config.Container) string {
	switch c {
	case config.ContainerMP4:
		return "mp4"
	case config.ContainerWebM:
		return "webm"
	case config.ContainerMPEGTS:
		return "mpegts"
	default:
		return "matroska"
	}
}

func optsString(opts map[string]string) string {
	if len(opts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(opts))
	for k, v := range opts {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ":")
}

// maskStreamKey hides the path segment after the last "/" so stream keys
// never land in logs or error messages.
func maskStreamKey(url string) string {
	start := 0
	if i := strings.Index(url, "://"); i >= 0 {
		start = i + len("://")
	}
	idx := strings.LastIndex(url, "/")
	if idx < start || idx == len(url)-1 {
		return url
	}
	return url[:idx+1] + "****"
}

func codecIDFor(codec model.CodecKind) C.int {
	switch codec {
	case model.CodecHEVC:
		return C.AV_CODEC_ID_HEVC
	case model.CodecAV1:
		return C.AV_CODEC_ID_AV1
	default:
		return C.AV_CODEC_ID_H264
	}
}

func audioCodecIDFor(codec model.AudioCodecKind) C.int {
	if codec == model.AudioCodecOpus {
		return C.AV_CODEC_ID_OPUS
	}
	return C.AV_CODEC_ID_AAC
}

func pixFmtFor(format model.FrameFormat) C.int {
	switch format {
	case model.FormatP010:
		return C.AV_PIX_FMT_P010LE
	case model.FormatNV12:
		return C.AV_PIX_FMT_NV12
	default:
		return C.AV_PIX_FMT_YUV420P
	}
}

// InitWithCodec is idempotent: a second call with the header already
// written is a no-op, matching the single-handshake contract every other
// sink's InitWithCodec/InitRaw honors.
func (m *muxer) InitWithCodec(videoParams *model.CodecParams, audioParams *model.AudioParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headerDone {
		return nil
	}
	if videoParams == nil {
		return werrors.New(werrors.KindMuxer)
	}

	var extraPtr *C.uint8_t
	if len(videoParams.Extradata) > 0 {
		extraPtr = (*C.uint8_t)(unsafe.Pointer(&videoParams.Extradata[0]))
	}
	idx := C.wc_muxer_add_video_stream(
		m.c, codecIDFor(videoParams.Codec),
		C.int(videoParams.Resolution.Width), C.int(videoParams.Resolution.Height),
		pixFmtFor(videoParams.PixelFormat), C.int64_t(videoParams.BitrateBPS),
		extraPtr, C.int(len(videoParams.Extradata)),
		C.int(videoParams.TimeBaseNum), C.int(videoParams.TimeBaseDen),
		C.int(videoParams.Framerate.Num), C.int(videoParams.Framerate.Den),
	)
	if idx < 0 {
		return werrors.New(werrors.KindMuxer)
	}

	if audioParams != nil {
		var aExtraPtr *C.uint8_t
		if len(audioParams.Extradata) > 0 {
			aExtraPtr = (*C.uint8_t)(unsafe.Pointer(&audioParams.Extradata[0]))
		}
		aidx := C.wc_muxer_add_audio_stream(
			m.c, audioCodecIDFor(audioParams.Codec),
			C.int(audioParams.SampleRate), C.int(audioParams.Channels.Channels()),
			C.int64_t(audioParams.BitrateBPS), aExtraPtr, C.int(len(audioParams.Extradata)),
		)
		if aidx < 0 {
			return werrors.New(werrors.KindMuxer)
		}
		m.audioSampleRate = audioParams.SampleRate
	}

	if C.wc_muxer_write_header(m.c) < 0 {
		return werrors.Newf(werrors.KindMuxer, "write header for %s", maskStreamKey(m.url))
	}
	m.headerDone = true
	return nil
}

func (m *muxer) Write(pkt *model.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.headerDone {
		return werrors.New(werrors.KindMuxer)
	}
	var dataPtr *C.uint8_t
	if len(pkt.Data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&pkt.Data[0]))
	}
	isKey := C.int(0)
	if pkt.IsKeyframe {
		isKey = 1
	}
	ret := C.wc_muxer_write_packet(
		m.c, C.int(m.c.video_stream), dataPtr, C.int(len(pkt.Data)),
		C.int64_t(pkt.PTS), C.int64_t(pkt.DTS), C.int64_t(pkt.Duration), isKey,
		1, 1_000_000,
	)
	if ret < 0 {
		return werrors.New(werrors.KindMuxer)
	}
	m.bytesWritten += uint64(len(pkt.Data))
	return nil
}

func (m *muxer) WriteAudio(pkt *model.AudioPacket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.headerDone || m.c.audio_stream < 0 {
		return werrors.New(werrors.KindMuxer)
	}
	var dataPtr *C.uint8_t
	if len(pkt.Data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&pkt.Data[0]))
	}
	ret := C.wc_muxer_write_packet(
		m.c, C.int(m.c.audio_stream), dataPtr, C.int(len(pkt.Data)),
		C.int64_t(pkt.PTS), C.int64_t(pkt.DTS), 0, 1,
		1, C.int64_t(m.audioSampleRate), // PTS is in samples, matching the stream's 1/sample_rate time base
	)
	if ret < 0 {
		return werrors.New(werrors.KindMuxer)
	}
	m.bytesWritten += uint64(len(pkt.Data))
	return nil
}

// Finish writes the trailer and closes the context. Idempotent: calling it
// twice is a no-op the second time.
func (m *muxer) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return nil
	}
	var err error
	if m.headerDone {
		if C.wc_muxer_write_trailer(m.c) < 0 {
			err = werrors.New(werrors.KindMuxer)
		}
	}
	C.wc_muxer_close(m.c)
	m.c = nil
	return err
}

func (m *muxer) BytesWritten() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesWritten
}

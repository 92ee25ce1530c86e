//go:build linux

package capture

/*
#cgo pkg-config: libpipewire-0.3 libspa-0.2
#include <pipewire/pipewire.h>
#include <spa/param/video/format-utils.h>
#include <spa/param/param.h>
#include <spa/buffer/buffer.h>
#include <spa/utils/result.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	struct pw_main_loop *loop;
	struct pw_context *context;
	struct pw_core *core;
	struct pw_stream *stream;
	struct spa_hook stream_listener;
	int running;
	int errored;

	uint32_t width;
	uint32_t height;
	uint32_t fmt;      // spa_video_format
	uint32_t fps_num;
	uint32_t fps_den;

	uint32_t target_width;
	uint32_t target_height;
	uint32_t target_fps;

	void *userdata;
} PwCaptureClient;

extern void goCaptureProcess(void *userdata, uint8_t *data, uint32_t size, int32_t stride,
                              uint32_t width, uint32_t height, uint32_t fmt);
extern void goCaptureStateChanged(void *userdata, int errored);

static void on_capture_process(void *data) {
	PwCaptureClient *c = (PwCaptureClient *)data;
	struct pw_buffer *b = pw_stream_dequeue_buffer(c->stream);
	if (!b) return;

	struct spa_buffer *buf = b->buffer;
	if (buf->n_datas < 1 || buf->datas[0].data == NULL) {
		pw_stream_queue_buffer(c->stream, b);
		return;
	}

	struct spa_data *d = &buf->datas[0];
	uint32_t size = d->chunk->size;
	int32_t stride = d->chunk->stride;
	if (size > 0) {
		goCaptureProcess(c->userdata, (uint8_t*)d->data + d->chunk->offset, size, stride,
		                  c->width, c->height, c->fmt);
	}

	pw_stream_queue_buffer(c->stream, b);
}

static void on_capture_state_changed(void *data, enum pw_stream_state old,
                                      enum pw_stream_state state, const char *error) {
	PwCaptureClient *c = (PwCaptureClient *)data;
	if (state == PW_STREAM_STATE_ERROR) {
		c->running = 0;
		c->errored = 1;
		goCaptureStateChanged(c->userdata, 1);
	} else if (state == PW_STREAM_STATE_UNCONNECTED) {
		c->running = 0;
		goCaptureStateChanged(c->userdata, 0);
	}
}

static void on_capture_param_changed(void *data, uint32_t id, const struct spa_pod *param) {
	PwCaptureClient *c = (PwCaptureClient *)data;
	if (param == NULL || id != SPA_PARAM_Format) return;

	struct spa_video_info_raw info;
	spa_zero(info);
	if (spa_format_video_raw_parse(param, &info) < 0) return;

	c->width = info.size.width;
	c->height = info.size.height;
	c->fmt = info.format;
	c->fps_num = info.framerate.num;
	c->fps_den = info.framerate.denom ? info.framerate.denom : 1;

	uint8_t buffer[1024];
	struct spa_pod_builder b = SPA_POD_BUILDER_INIT(buffer, sizeof(buffer));
	const struct spa_pod *params[1];
	params[0] = spa_pod_builder_add_object(&b,
		SPA_TYPE_OBJECT_ParamBuffers, SPA_PARAM_Buffers,
		SPA_PARAM_BUFFERS_buffers, SPA_POD_CHOICE_RANGE_Int(8, 2, 16),
		SPA_PARAM_BUFFERS_dataType, SPA_POD_Int(1 << SPA_DATA_MemFd),
		0);
	pw_stream_update_params(c->stream, params, 1);
}

static const struct pw_stream_events capture_stream_events = {
	PW_VERSION_STREAM_EVENTS,
	.state_changed = on_capture_state_changed,
	.param_changed = on_capture_param_changed,
	.process = on_capture_process,
};

static PwCaptureClient *pw_capture_new(int remote_fd, uint32_t target_w, uint32_t target_h, uint32_t target_fps, void *userdata) {
	pw_init(NULL, NULL);

	PwCaptureClient *c = calloc(1, sizeof(PwCaptureClient));
	if (!c) return NULL;
	c->target_width = target_w;
	c->target_height = target_h;
	c->target_fps = target_fps;
	c->userdata = userdata;

	c->loop = pw_main_loop_new(NULL);
	if (!c->loop) { free(c); return NULL; }

	c->context = pw_context_new(pw_main_loop_get_loop(c->loop), NULL, 0);
	if (!c->context) { pw_main_loop_destroy(c->loop); free(c); return NULL; }

	if (remote_fd >= 0) {
		c->core = pw_context_connect_fd(c->context, remote_fd, NULL, 0);
	} else {
		c->core = pw_context_connect(c->context, NULL, 0);
	}
	if (!c->core) {
		pw_context_destroy(c->context);
		pw_main_loop_destroy(c->loop);
		free(c);
		return NULL;
	}
	return c;
}

static int pw_capture_connect(PwCaptureClient *c, uint32_t node_id) {
	struct pw_properties *props = pw_properties_new(
		PW_KEY_MEDIA_TYPE, "Video",
		PW_KEY_MEDIA_CATEGORY, "Capture",
		PW_KEY_MEDIA_ROLE, "Screen",
		NULL);

	c->stream = pw_stream_new(c->core, "waycast-capture", props);
	if (!c->stream) return -1;

	pw_stream_add_listener(c->stream, &c->stream_listener, &capture_stream_events, c);

	uint8_t buffer[2048];
	struct spa_pod_builder b = SPA_POD_BUILDER_INIT(buffer, sizeof(buffer));
	struct spa_rectangle pref_size = SPA_RECTANGLE(
		c->target_width ? c->target_width : 1920,
		c->target_height ? c->target_height : 1080);
	struct spa_rectangle min_size = SPA_RECTANGLE(1, 1);
	struct spa_rectangle max_size = SPA_RECTANGLE(7680, 4320);
	struct spa_fraction pref_fps = SPA_FRACTION(c->target_fps ? c->target_fps : 60, 1);
	struct spa_fraction min_fps = SPA_FRACTION(1, 1);
	struct spa_fraction max_fps = SPA_FRACTION(240, 1);

	const struct spa_pod *params[1];
	params[0] = spa_pod_builder_add_object(&b,
		SPA_TYPE_OBJECT_Format, SPA_PARAM_EnumFormat,
		SPA_FORMAT_mediaType, SPA_POD_Id(SPA_MEDIA_TYPE_video),
		SPA_FORMAT_mediaSubtype, SPA_POD_Id(SPA_MEDIA_SUBTYPE_raw),
		SPA_FORMAT_VIDEO_format, SPA_POD_CHOICE_ENUM_Id(6,
			SPA_VIDEO_FORMAT_BGRx, SPA_VIDEO_FORMAT_BGRx, SPA_VIDEO_FORMAT_BGRA,
			SPA_VIDEO_FORMAT_RGBx, SPA_VIDEO_FORMAT_RGBA, SPA_VIDEO_FORMAT_NV12),
		SPA_FORMAT_VIDEO_size, SPA_POD_CHOICE_RANGE_Rectangle(pref_size, min_size, max_size),
		SPA_FORMAT_VIDEO_framerate, SPA_POD_CHOICE_RANGE_Fraction(pref_fps, min_fps, max_fps),
		0);

	c->running = 1;
	int ret = pw_stream_connect(c->stream,
		PW_DIRECTION_INPUT, node_id,
		PW_STREAM_FLAG_AUTOCONNECT | PW_STREAM_FLAG_MAP_BUFFERS,
		params, 1);
	if (ret < 0) {
		pw_stream_destroy(c->stream);
		c->stream = NULL;
		c->running = 0;
		return -1;
	}
	return 0;
}

static void pw_capture_iterate(PwCaptureClient *c, int timeout_ms) {
	if (!c || !c->loop) return;
	struct pw_loop *loop = pw_main_loop_get_loop(c->loop);
	pw_loop_iterate(loop, timeout_ms);
}

static void pw_capture_stop(PwCaptureClient *c) {
	if (!c) return;
	c->running = 0;
	if (c->loop) pw_main_loop_quit(c->loop);
}

static void pw_capture_destroy(PwCaptureClient *c) {
	if (!c) return;
	if (c->stream) pw_stream_destroy(c->stream);
	if (c->core) pw_core_disconnect(c->core);
	if (c->context) pw_context_destroy(c->context);
	if (c->loop) pw_main_loop_destroy(c->loop);
	free(c);
}
*/
import "C"

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// pipeWireTarget is the node and remote FD a portal session hands to the
// direct PipeWire connection. A nil target means connect to the default
// PipeWire session and autoconnect to whatever node is offered — used by
// the BackendPipeWire path when no portal mediates access.
type pipeWireTarget struct {
	nodeID   uint32
	remoteFD int
}

// spaVideoFormat mirrors the enum spa/param/video/raw.h defines;
// only the values the EnumFormat choice above ever negotiates are listed.
type spaVideoFormat uint32

const (
	spaFormatUnknown spaVideoFormat = 0
	spaFormatBGRx    spaVideoFormat = 8
	spaFormatBGRA    spaVideoFormat = 12
	spaFormatRGBx    spaVideoFormat = 7
	spaFormatRGBA    spaVideoFormat = 11
	spaFormatNV12    spaVideoFormat = 23
)

func (f spaVideoFormat) toModel() model.FrameFormat {
	switch f {
	case spaFormatBGRx, spaFormatBGRA:
		return model.FormatBGRA
	case spaFormatRGBx, spaFormatRGBA:
		return model.FormatRGBA
	case spaFormatNV12:
		return model.FormatNV12
	default:
		return model.FormatUnknown
	}
}

type pipeWireCapture struct {
	cfg    config.CaptureConfig
	target *pipeWireTarget

	client *C.PwCaptureClient
	handle uintptr

	frames chan model.Frame
	done   chan struct{}

	mu         sync.Mutex
	active     bool
	lastErr    atomic.Value // error
	resolution model.Resolution
	framerate  model.Framerate
	closeFrames sync.Once
}

var (
	pwRegistryMu sync.Mutex
	pwRegistry   = make(map[uintptr]*pipeWireCapture)
	pwNextHandle uintptr
)

func newPipeWireCapture(cfg config.CaptureConfig, target *pipeWireTarget) (*pipeWireCapture, error) {
	p := &pipeWireCapture{
		cfg:    cfg,
		target: target,
		frames: make(chan model.Frame, 4),
		done:   make(chan struct{}),
	}
	return p, nil
}

func (p *pipeWireCapture) Start() error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	pwRegistryMu.Lock()
	pwNextHandle++
	p.handle = pwNextHandle
	pwRegistry[p.handle] = p
	pwRegistryMu.Unlock()

	started := make(chan error, 1)
	go p.run(started)

	select {
	case err := <-started:
		if err != nil {
			return err
		}
	case <-time.After(5 * time.Second):
		return werrors.New(werrors.KindPipeWire)
	}

	p.mu.Lock()
	p.active = true
	p.mu.Unlock()
	return nil
}

// run owns the PipeWire main loop on a dedicated OS thread — cgo callbacks
// into pw_stream must not migrate across goroutine-scheduled OS threads.
func (p *pipeWireCapture) run(started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	remoteFD := C.int(-1)
	var nodeID C.uint32_t = C.PW_ID_ANY
	if p.target != nil {
		remoteFD = C.int(p.target.remoteFD)
		nodeID = C.uint32_t(p.target.nodeID)
	}

	targetW, targetH := uint32(1920), uint32(1080)
	client := C.pw_capture_new(remoteFD, C.uint32_t(targetW), C.uint32_t(targetH),
		C.uint32_t(p.cfg.Framerate.FPS()), unsafe.Pointer(p.handle))
	if client == nil {
		started <- werrors.New(werrors.KindPipeWire)
		return
	}
	p.client = client

	if C.pw_capture_connect(client, nodeID) < 0 {
		C.pw_capture_destroy(client)
		started <- werrors.New(werrors.KindPipeWire)
		return
	}

	started <- nil

	for {
		select {
		case <-p.done:
			C.pw_capture_stop(client)
			C.pw_capture_destroy(client)
			return
		default:
			C.pw_capture_iterate(client, 12)
		}
	}
}

func (p *pipeWireCapture) Stop() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	p.active = false
	p.mu.Unlock()

	close(p.done)
	pwRegistryMu.Lock()
	delete(pwRegistry, p.handle)
	pwRegistryMu.Unlock()
	return nil
}

func (p *pipeWireCapture) NextFrame() (model.Frame, error) {
	select {
	case f, ok := <-p.frames:
		if !ok {
			return model.Frame{}, werrors.ErrCaptureEnded
		}
		return f, nil
	case <-time.After(frameTimeout):
		if !p.IsActive() {
			return model.Frame{}, werrors.ErrCaptureEnded
		}
		return model.Frame{}, werrors.ErrTimeout
	}
}

func (p *pipeWireCapture) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *pipeWireCapture) Resolution() model.Resolution {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolution
}

func (p *pipeWireCapture) Framerate() model.Framerate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framerate
}

//export goCaptureProcess
func goCaptureProcess(userdata unsafe.Pointer, data *C.uint8_t, size C.uint32_t, stride C.int32_t,
	width, height C.uint32_t, fmt C.uint32_t) {
	handle := uintptr(userdata)
	pwRegistryMu.Lock()
	p := pwRegistry[handle]
	pwRegistryMu.Unlock()
	if p == nil || size == 0 {
		return
	}

	w, h := int(width), int(height)
	format := spaVideoFormat(fmt).toModel()
	if format == model.FormatUnknown || w == 0 || h == 0 {
		return
	}

	buf := C.GoBytes(unsafe.Pointer(data), C.int(size))
	frame := model.FromData(buf, w, h, int(stride), format)
	frame.PTS = time.Now().UnixMicro()

	p.mu.Lock()
	p.resolution = model.NewResolution(w, h)
	p.mu.Unlock()

	select {
	case p.frames <- frame:
	default:
		// bounded backpressure: capture must not stall the compositor.
	}
}

//export goCaptureStateChanged
func goCaptureStateChanged(userdata unsafe.Pointer, errored C.int) {
	handle := uintptr(userdata)
	pwRegistryMu.Lock()
	p := pwRegistry[handle]
	pwRegistryMu.Unlock()
	if p == nil {
		return
	}
	if errored != 0 {
		p.lastErr.Store(werrors.Newf(werrors.KindPipeWire, "stream entered error state"))
	}
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
	p.closeFrames.Do(func() { close(p.frames) })
}

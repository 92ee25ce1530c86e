//go:build linux

package output

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

	uint32_t width;
	uint32_t height;
	uint32_t stride;

	void *userdata;
} PwSourceClient;

extern void goSourcePullFrame(void *userdata, uint8_t *dst, uint32_t dst_size, uint32_t width, uint32_t height, uint32_t stride);

static void on_source_process(void *data) {
	PwSourceClient *c = (PwSourceClient *)data;
	struct pw_buffer *b = pw_stream_dequeue_buffer(c->stream);
	if (!b) return;

	struct spa_buffer *buf = b->buffer;
	if (buf->n_datas < 1 || buf->datas[0].data == NULL) {
		pw_stream_queue_buffer(c->stream, b);
		return;
	}

	struct spa_data *d = &buf->datas[0];
	uint32_t size = c->stride * c->height;
	if (d->maxsize < size) size = d->maxsize;

	goSourcePullFrame(c->userdata, (uint8_t*)d->data, size, c->width, c->height, c->stride);

	d->chunk->offset = 0;
	d->chunk->stride = c->stride;
	d->chunk->size = size;

	pw_stream_queue_buffer(c->stream, b);
}

static void on_source_state_changed(void *data, enum pw_stream_state old,
                                     enum pw_stream_state state, const char *error) {
	PwSourceClient *c = (PwSourceClient *)data;
	if (state == PW_STREAM_STATE_ERROR || state == PW_STREAM_STATE_UNCONNECTED) {
		c->running = 0;
	}
}

static const struct pw_stream_events source_stream_events = {
	PW_VERSION_STREAM_EVENTS,
	.state_changed = on_source_state_changed,
	.process = on_source_process,
};

static PwSourceClient *pw_source_new(uint32_t width, uint32_t height, uint32_t fps,
                                      const char *name, const char *description, void *userdata) {
	pw_init(NULL, NULL);

	PwSourceClient *c = calloc(1, sizeof(PwSourceClient));
	if (!c) return NULL;
	c->width = width;
	c->height = height;
	c->stride = width * 4;
	c->userdata = userdata;

	c->loop = pw_main_loop_new(NULL);
	if (!c->loop) { free(c); return NULL; }

	c->context = pw_context_new(pw_main_loop_get_loop(c->loop), NULL, 0);
	if (!c->context) { pw_main_loop_destroy(c->loop); free(c); return NULL; }

	c->core = pw_context_connect(c->context, NULL, 0);
	if (!c->core) { pw_context_destroy(c->context); pw_main_loop_destroy(c->loop); free(c); return NULL; }

	struct pw_properties *props = pw_properties_new(
		PW_KEY_MEDIA_TYPE, "Video",
		PW_KEY_MEDIA_CATEGORY, "Capture",
		PW_KEY_MEDIA_CLASS, "Video/Source",
		PW_KEY_MEDIA_ROLE, "Camera",
		PW_KEY_NODE_NAME, name,
		PW_KEY_NODE_DESCRIPTION, description,
		NULL);

	c->stream = pw_stream_new(c->core, name, props);
	if (!c->stream) {
		pw_core_disconnect(c->core);
		pw_context_destroy(c->context);
		pw_main_loop_destroy(c->loop);
		free(c);
		return NULL;
	}

	pw_stream_add_listener(c->stream, &c->stream_listener, &source_stream_events, c);

	uint8_t buffer[1024];
	struct spa_pod_builder b = SPA_POD_BUILDER_INIT(buffer, sizeof(buffer));
	struct spa_rectangle size = SPA_RECTANGLE(width, height);
	struct spa_fraction framerate = SPA_FRACTION(fps ? fps : 30, 1);

	const struct spa_pod *params[1];
	params[0] = spa_pod_builder_add_object(&b,
		SPA_TYPE_OBJECT_Format, SPA_PARAM_EnumFormat,
		SPA_FORMAT_mediaType, SPA_POD_Id(SPA_MEDIA_TYPE_video),
		SPA_FORMAT_mediaSubtype, SPA_POD_Id(SPA_MEDIA_SUBTYPE_raw),
		SPA_FORMAT_VIDEO_format, SPA_POD_Id(SPA_VIDEO_FORMAT_RGBA),
		SPA_FORMAT_VIDEO_size, SPA_POD_Rectangle(size),
		SPA_FORMAT_VIDEO_framerate, SPA_POD_Fraction(framerate),
		0);

	c->running = 1;
	int ret = pw_stream_connect(c->stream,
		PW_DIRECTION_OUTPUT, PW_ID_ANY,
		PW_STREAM_FLAG_DRIVER | PW_STREAM_FLAG_MAP_BUFFERS,
		params, 1);
	if (ret < 0) {
		pw_stream_destroy(c->stream);
		pw_core_disconnect(c->core);
		pw_context_destroy(c->context);
		pw_main_loop_destroy(c->loop);
		free(c);
		return NULL;
	}
	return c;
}

static void pw_source_iterate(PwSourceClient *c, int timeout_ms) {
	if (!c || !c->loop) return;
	pw_loop_iterate(pw_main_loop_get_loop(c->loop), timeout_ms);
}

static void pw_source_stop(PwSourceClient *c) {
	if (!c) return;
	c->running = 0;
	if (c->loop) pw_main_loop_quit(c->loop);
}

static void pw_source_destroy(PwSourceClient *c) {
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

	"waycast/internal/model"
	"waycast/internal/werrors"
)

// virtualCamera is the PipeWire-backed virtual source node (C5.e): a
// process callback pulls one frame from an inbound queue per tick, or
// emits a black RGBA frame when the pipeline falls behind so downstream
// consumers (video-conferencing apps) never see a stalled stream.
type virtualCamera struct {
	client *C.PwSourceClient
	handle uintptr

	name, description string
	width, height      int

	frames chan *model.Frame
	done   chan struct{}

	mu           sync.Mutex
	active       bool
	bytesWritten uint64
	lastErr      atomic.Value
}

var (
	vcRegistryMu sync.Mutex
	vcRegistry   = make(map[uintptr]*virtualCamera)
	vcNextHandle uintptr
)

func newVirtualCamera(name, description string) (RawOutputSink, error) {
	vc := &virtualCamera{
		name:        name,
		description: description,
		frames:      make(chan *model.Frame, 2),
		done:        make(chan struct{}),
	}
	vcRegistryMu.Lock()
	vcNextHandle++
	vc.handle = vcNextHandle
	vcRegistry[vc.handle] = vc
	vcRegistryMu.Unlock()
	return vc, nil
}

func (vc *virtualCamera) InitRaw(res model.Resolution, format model.FrameFormat) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.active {
		return nil
	}
	vc.width, vc.height = res.Width, res.Height

	cName := C.CString(vc.name)
	cDesc := C.CString(vc.description)
	defer C.free(unsafe.Pointer(cName))
	defer C.free(unsafe.Pointer(cDesc))

	client := C.pw_source_new(C.uint32_t(res.Width), C.uint32_t(res.Height), 30,
		cName, cDesc, unsafe.Pointer(vc.handle))
	if client == nil {
		return werrors.New(werrors.KindVirtualCamera)
	}
	vc.client = client
	vc.active = true
	go vc.run()
	return nil
}

// run owns the PipeWire loop on a dedicated OS thread, matching the
// capture-side pw_main_loop ownership rule: cgo callbacks must fire on the
// same OS thread that created the loop.
func (vc *virtualCamera) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-vc.done:
			C.pw_source_stop(vc.client)
			C.pw_source_destroy(vc.client)
			return
		default:
			C.pw_source_iterate(vc.client, 16)
		}
	}
}

func (vc *virtualCamera) WriteFrame(frame *model.Frame) error {
	select {
	case vc.frames <- frame:
	default:
		// bounded backpressure: drop rather than block the capture path.
	}
	return nil
}

func (vc *virtualCamera) Finish() error {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if !vc.active {
		return nil
	}
	vc.active = false
	close(vc.done)
	vcRegistryMu.Lock()
	delete(vcRegistry, vc.handle)
	vcRegistryMu.Unlock()
	return nil
}

func (vc *virtualCamera) BytesWritten() uint64 {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.bytesWritten
}

//export goSourcePullFrame
func goSourcePullFrame(userdata unsafe.Pointer, dst *C.uint8_t, dstSize, width, height, stride C.uint32_t) {
	handle := uintptr(userdata)
	vcRegistryMu.Lock()
	vc := vcRegistry[handle]
	vcRegistryMu.Unlock()
	if vc == nil {
		return
	}

	out := unsafe.Slice((*byte)(unsafe.Pointer(dst)), int(dstSize))

	select {
	case frame := <-vc.frames:
		n := copy(out, frame.Data)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
	default:
		for i := range out {
			out[i] = 0
		}
	}

	vc.mu.Lock()
	vc.bytesWritten += uint64(len(out))
	vc.mu.Unlock()
}

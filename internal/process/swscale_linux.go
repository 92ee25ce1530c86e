//go:build linux

package process

/*
#cgo pkg-config: libswscale libavutil
#include <libswscale/swscale.h>
#include <libavutil/pixfmt.h>
#include <stdlib.h>
#include <string.h>

static struct SwsContext *wc_sws_get(int sw, int sh, int sfmt, int dw, int dh, int dfmt, int algo) {
	return sws_getContext(sw, sh, sfmt, dw, dh, dfmt, algo, NULL, NULL, NULL);
}

// wc_sws_scale runs a full-frame conversion with up to 3 planes on each
// side; unused plane slots must be NULL/0.
static int wc_sws_scale(struct SwsContext *ctx, int sh,
                         uint8_t *sp0, int ss0, uint8_t *sp1, int ss1, uint8_t *sp2, int ss2,
                         uint8_t *dp0, int ds0, uint8_t *dp1, int ds1, uint8_t *dp2, int ds2) {
	const uint8_t *src[3] = { sp0, sp1, sp2 };
	int srcStride[3] = { ss0, ss1, ss2 };
	uint8_t *dst[3] = { dp0, dp1, dp2 };
	int dstStride[3] = { ds0, ds1, ds2 };
	return sws_scale(ctx, src, srcStride, 0, sh, dst, dstStride);
}
*/
import "C"

import (
	"unsafe"

	"waycast/internal/model"
	"waycast/internal/werrors"
)

func pixFmtOf(f model.FrameFormat) C.int {
	switch f {
	case model.FormatNV12:
		return C.AV_PIX_FMT_NV12
	case model.FormatYUV420P:
		return C.AV_PIX_FMT_YUV420P
	case model.FormatYUV444P:
		return C.AV_PIX_FMT_YUV444P
	case model.FormatBGRA:
		return C.AV_PIX_FMT_BGRA
	case model.FormatRGBA:
		return C.AV_PIX_FMT_RGBA
	case model.FormatRGB24:
		return C.AV_PIX_FMT_RGB24
	case model.FormatP010:
		return C.AV_PIX_FMT_P010LE
	default:
		return C.AV_PIX_FMT_NONE
	}
}

func swsAlgo(a ScaleAlgo) C.int {
	switch a {
	case ScaleNearest:
		return C.SWS_POINT
	case ScaleBicubic:
		return C.SWS_BICUBIC
	case ScaleLanczos:
		return C.SWS_LANCZOS
	default:
		return C.SWS_BILINEAR
	}
}

// planeLayout describes up to 3 byte-plane offsets and strides for a
// frame of the given format, width, and height. Packed formats report a
// single plane; NV12/P010 report 2 (luma + interleaved chroma); planar
// YUV formats report 3.
type planeLayout struct {
	offsets [3]int
	strides [3]int
	count   int
}

func layoutFor(f model.FrameFormat, width, height, stride int) planeLayout {
	switch f {
	case model.FormatNV12:
		return planeLayout{offsets: [3]int{0, width * height}, strides: [3]int{stride, stride}, count: 2}
	case model.FormatP010:
		lumaStride := stride
		return planeLayout{offsets: [3]int{0, width * height * 2}, strides: [3]int{lumaStride, lumaStride}, count: 2}
	case model.FormatYUV420P:
		ySize := width * height
		cStride := stride / 2
		cSize := (width / 2) * (height / 2)
		return planeLayout{
			offsets: [3]int{0, ySize, ySize + cSize},
			strides: [3]int{stride, cStride, cStride},
			count:   3,
		}
	case model.FormatYUV444P:
		pSize := width * height
		return planeLayout{
			offsets: [3]int{0, pSize, pSize * 2},
			strides: [3]int{stride, stride, stride},
			count:   3,
		}
	default:
		return planeLayout{strides: [3]int{stride, 0, 0}, count: 1}
	}
}

func planePtr(data []byte, offset int) *C.uint8_t {
	if offset >= len(data) {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&data[offset]))
}

// generalProcess delegates to libswscale for any conversion the pure-Go
// fast paths in process.go don't cover: arbitrary scaling and the
// YUV420P/YUV444P/RGB24 conversions.
func generalProcess(f model.Frame, opts Options) (model.Frame, error) {
	dstW, dstH := f.Width, f.Height
	if opts.TargetResolution != nil {
		dstW, dstH = opts.TargetResolution.Width, opts.TargetResolution.Height
	}
	dstFmt := f.Format
	if opts.TargetFormat != model.FormatUnknown {
		dstFmt = opts.TargetFormat
	}

	srcFmt := pixFmtOf(f.Format)
	dstCFmt := pixFmtOf(dstFmt)
	if srcFmt == C.AV_PIX_FMT_NONE || dstCFmt == C.AV_PIX_FMT_NONE {
		return model.Frame{}, errUnsupportedFormat
	}

	ctx := C.wc_sws_get(
		C.int(f.Width), C.int(f.Height), srcFmt,
		C.int(dstW), C.int(dstH), dstCFmt,
		swsAlgo(opts.Algo),
	)
	if ctx == nil {
		return model.Frame{}, errSwsInit
	}
	defer C.sws_freeContext(ctx)

	out := model.NewFrame(dstW, dstH, dstFmt)
	srcLayout := layoutFor(f.Format, f.Width, f.Height, f.Stride)
	dstLayout := layoutFor(dstFmt, dstW, dstH, out.Stride)

	ret := C.wc_sws_scale(ctx, C.int(f.Height),
		planePtr(f.Data, srcLayout.offsets[0]), C.int(srcLayout.strides[0]),
		planePtr(f.Data, srcLayout.offsets[1]), C.int(srcLayout.strides[1]),
		planePtr(f.Data, srcLayout.offsets[2]), C.int(srcLayout.strides[2]),
		planePtr(out.Data, dstLayout.offsets[0]), C.int(dstLayout.strides[0]),
		planePtr(out.Data, dstLayout.offsets[1]), C.int(dstLayout.strides[1]),
		planePtr(out.Data, dstLayout.offsets[2]), C.int(dstLayout.strides[2]),
	)
	if ret <= 0 {
		return model.Frame{}, errSwsScale
	}
	return out, nil
}

var (
	errUnsupportedFormat = werrors.Newf(werrors.KindColorspaceConversion, "format not supported by the general conversion path")
	errSwsInit           = werrors.Newf(werrors.KindScaling, "failed to initialize scaler context")
	errSwsScale          = werrors.Newf(werrors.KindScaling, "sws_scale returned no output rows")
)

package model

// FrameFormat identifies the pixel layout of a Frame's byte buffer.
type FrameFormat int

const (
	FormatUnknown FrameFormat = iota
	FormatNV12                // 8-bit 4:2:0, interleaved UV plane — encoder-native
	FormatYUV420P             // 8-bit 4:2:0, planar Y/U/V
	FormatYUV444P             // 8-bit 4:4:4, planar Y/U/V
	FormatBGRA                // 8-bit packed BGRA
	FormatRGBA                // 8-bit packed RGBA
	FormatRGB24               // 8-bit packed RGB, no alpha
	FormatP010                // 10-bit 4:2:0, interleaved UV plane — encoder-native
)

func (f FrameFormat) String() string {
	switch f {
	case FormatNV12:
		return "NV12"
	case FormatYUV420P:
		return "YUV420P"
	case FormatYUV444P:
		return "YUV444P"
	case FormatBGRA:
		return "BGRA"
	case FormatRGBA:
		return "RGBA"
	case FormatRGB24:
		return "RGB24"
	case FormatP010:
		return "P010"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the average bytes-per-pixel for the format,
// accounting for chroma subsampling in planar formats (fractional).
func (f FrameFormat) BytesPerPixel() float64 {
	switch f {
	case FormatNV12, FormatYUV420P:
		return 1.5
	case FormatP010:
		return 3.0 // two bytes/sample, 4:2:0 subsampling -> 1.5 samples/px * 2 bytes
	case FormatYUV444P:
		return 3.0
	case FormatBGRA, FormatRGBA:
		return 4.0
	case FormatRGB24:
		return 3.0
	default:
		return 0
	}
}

// Planar reports whether the format stores chroma in separate planes
// (true for NV12/P010's UV plane and YUV420P/YUV444P's U/V planes) rather
// than packed per-pixel.
func (f FrameFormat) Planar() bool {
	switch f {
	case FormatNV12, FormatYUV420P, FormatYUV444P, FormatP010:
		return true
	default:
		return false
	}
}

// IsEncoderNative reports whether hardware and software encoders accept
// this format directly, without a colorspace conversion pass.
func (f FrameFormat) IsEncoderNative() bool {
	return f == FormatNV12 || f == FormatP010
}

// SizeBytes returns the minimum buffer size in bytes required to hold a
// frame of the given dimensions in this format.
func (f FrameFormat) SizeBytes(width, height int) int {
	bpp := f.BytesPerPixel()
	total := bpp * float64(width*height)
	n := int(total)
	if float64(n) < total {
		n++
	}
	return n
}

// Package process implements the pure frame transform stage (C3): scaling
// and pixel-format conversion between capture output and encoder input.
package process

import (
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// ScaleAlgo selects the resampling kernel used when geometry changes.
type ScaleAlgo int

const (
	ScaleBilinear ScaleAlgo = iota
	ScaleNearest
	ScaleBicubic
	ScaleLanczos
)

// Options configures one ProcessFrame call. A nil TargetResolution or
// TargetFormat zero value means "leave unchanged".
type Options struct {
	TargetResolution *model.Resolution
	TargetFormat     model.FrameFormat
	Algo             ScaleAlgo
}

// ProcessFrame scales and/or converts frame per opts. It never mutates the
// input frame and never touches a DMA-BUF FD — callers must materialize
// DMA-BUF frames into a buffer before calling this.
//
// It is a pure function: same input and opts always produce the same
// output, which makes it safe to call from any goroutine without locking.
func ProcessFrame(frame model.Frame, opts Options) (model.Frame, error) {
	if frame.IsZeroCopy() {
		return model.Frame{}, errDMABufInput
	}

	needsScale := opts.TargetResolution != nil &&
		(opts.TargetResolution.Width != frame.Width || opts.TargetResolution.Height != frame.Height)
	needsConvert := opts.TargetFormat != model.FormatUnknown && opts.TargetFormat != frame.Format

	if !needsScale && !needsConvert {
		return cloneFrame(frame), nil
	}

	if !needsScale {
		if fast, ok := fastConvert(frame, opts.TargetFormat); ok {
			return fast, nil
		}
	}

	return generalProcess(frame, opts)
}

func cloneFrame(f model.Frame) model.Frame {
	out := f
	out.Data = append([]byte(nil), f.Data...)
	return out
}

// fastConvert handles the conversions cheap enough to do without a general
// scaler: same-geometry byte swaps and 8→10 bit promotions.
func fastConvert(f model.Frame, target model.FrameFormat) (model.Frame, bool) {
	switch {
	case (f.Format == model.FormatBGRA && target == model.FormatRGBA) ||
		(f.Format == model.FormatRGBA && target == model.FormatBGRA):
		return swapRB(f, target), true
	case (f.Format == model.FormatBGRA || f.Format == model.FormatNV12) && target == model.FormatP010:
		return promoteToP010(f), true
	default:
		return model.Frame{}, false
	}
}

// swapRB exchanges the R and B byte lanes of a 4-byte-per-pixel buffer.
func swapRB(f model.Frame, target model.FrameFormat) model.Frame {
	out := cloneFrame(f)
	out.Format = target
	data := out.Data
	for row := 0; row < f.Height; row++ {
		rowStart := row * f.Stride
		for col := 0; col < f.Width; col++ {
			i := rowStart + col*4
			if i+2 >= len(data) {
				break
			}
			data[i], data[i+2] = data[i+2], data[i]
		}
	}
	return out
}

// bt2020Shift is the 8-to-10-bit promotion constant: replicate the top two
// bits of the 8-bit sample into the low bits of the 10-bit sample, the
// cheap high-quality approximation BT.2020 10-bit pipelines use instead of
// zero-padding (which biases values toward black).
func bt2020Shift(v8 byte) uint16 {
	v := uint16(v8) << 2
	return v | (uint16(v8) >> 6)
}

// promoteToP010 upconverts an 8-bit NV12 or BGRA-derived-NV12 plane layout
// to 10-bit P010 (two bytes per sample, little-endian, top-justified).
func promoteToP010(f model.Frame) model.Frame {
	var src model.Frame
	if f.Format == model.FormatBGRA {
		src = bgraToNV12(f)
	} else {
		src = f
	}

	out := model.NewFrame(src.Width, src.Height, model.FormatP010)
	lumaSamples := src.Width * src.Height
	chromaSamples := src.Width * src.Height / 2
	for i := 0; i < lumaSamples && i < len(src.Data); i++ {
		v := bt2020Shift(src.Data[i]) << 6
		out.Data[i*2] = byte(v)
		out.Data[i*2+1] = byte(v >> 8)
	}
	chromaOff := lumaSamples
	outChromaOff := lumaSamples * 2
	for i := 0; i < chromaSamples && chromaOff+i < len(src.Data); i++ {
		v := bt2020Shift(src.Data[chromaOff+i]) << 6
		out.Data[outChromaOff+i*2] = byte(v)
		out.Data[outChromaOff+i*2+1] = byte(v >> 8)
	}
	return out
}

// bgraToNV12 is a naive BT.601 limited-range BGRA→NV12 conversion used only
// as an intermediate step before P010 promotion; the general cgo path is used
// whenever a direct BGRA target format other than P010 or RGBA is requested.
func bgraToNV12(f model.Frame) model.Frame {
	out := model.NewFrame(f.Width, f.Height, model.FormatNV12)
	ySize := f.Width * f.Height
	for row := 0; row < f.Height; row++ {
		for col := 0; col < f.Width; col++ {
			i := row*f.Stride + col*4
			if i+3 >= len(f.Data) {
				continue
			}
			b, g, r := int(f.Data[i]), int(f.Data[i+1]), int(f.Data[i+2])
			y := (66*r + 129*g + 25*b + 128) >> 8
			y += 16
			out.Data[row*f.Width+col] = clampByte(y)
			if row%2 == 0 && col%2 == 0 {
				u := (-38*r - 74*g + 112*b + 128) >> 8
				v := (112*r - 94*g - 18*b + 128) >> 8
				u += 128
				v += 128
				uvIdx := ySize + (row/2)*f.Width + (col/2)*2
				if uvIdx+1 < len(out.Data) {
					out.Data[uvIdx] = clampByte(u)
					out.Data[uvIdx+1] = clampByte(v)
				}
			}
		}
	}
	return out
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

var errDMABufInput = werrors.Newf(werrors.KindColorspaceConversion, "frame must be materialized before processing (zero-copy DMA-BUF frames are not supported)")

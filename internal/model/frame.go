package model

// Frame is one raw video frame moving through capture -> process -> encode.
// It owns either a byte buffer (Data) or a DMA-BUF file descriptor
// (DMABufFD), never both: zero-copy frames carry an empty Data slice and a
// valid descriptor; once a frame has been processed (scaled/converted) it
// is always the buffer variant. Frame is a value type — callers that need
// to retain it across a channel send should not mutate Data afterwards.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Stride     int
	Format     FrameFormat
	PTS        int64 // microseconds, monotone non-decreasing within a session
	Duration   int64 // microseconds
	IsKeyframe bool

	// DMABufFD is >= 0 when this frame owns a DMA-BUF file descriptor
	// instead of a CPU buffer. Data is empty in that case.
	DMABufFD int
}

// NewFrame allocates a zero-initialized buffer sized for width x height in
// the given format.
func NewFrame(width, height int, format FrameFormat) Frame {
	return Frame{
		Data:     make([]byte, format.SizeBytes(width, height)),
		Width:    width,
		Height:   height,
		Stride:   defaultStride(width, format),
		Format:   format,
		DMABufFD: -1,
	}
}

// FromData wraps an existing buffer without copying, taking ownership of it.
func FromData(data []byte, width, height, stride int, format FrameFormat) Frame {
	return Frame{
		Data:     data,
		Width:    width,
		Height:   height,
		Stride:   stride,
		Format:   format,
		DMABufFD: -1,
	}
}

// FromDMABuf constructs a zero-copy frame backed by a DMA-BUF descriptor.
// Consumers that cannot handle the FD variant must materialize it first
// (there is no implicit mmap in this package).
func FromDMABuf(fd, width, height, stride int, format FrameFormat) Frame {
	return Frame{
		Width:    width,
		Height:   height,
		Stride:   stride,
		Format:   format,
		DMABufFD: fd,
	}
}

// IsZeroCopy reports whether this frame owns a DMA-BUF descriptor rather
// than a CPU buffer.
func (f Frame) IsZeroCopy() bool {
	return f.DMABufFD >= 0
}

// SizeBytes returns len(Data); zero for a zero-copy frame.
func (f Frame) SizeBytes() int {
	return len(f.Data)
}

func defaultStride(width int, format FrameFormat) int {
	switch format {
	case FormatBGRA, FormatRGBA:
		return width * 4
	case FormatRGB24:
		return width * 3
	case FormatP010:
		return width * 2
	default:
		return width
	}
}

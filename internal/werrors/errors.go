// Package werrors defines the error taxonomy shared across the capture,
// encode, output, and pipeline stages. It is named werrors rather than
// errors to avoid shadowing the standard library package that every file
// here also imports.
package werrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the non-overlapping failure categories surfaced by the
// pipeline. Each maps to exactly one of spec's taxonomy entries.
type Kind int

const (
	KindUnknown Kind = iota
	KindPortal
	KindPipeWire
	KindNoCaptureSource
	KindCapturePermissionDenied
	KindCaptureNotStarted
	KindCaptureEnded
	KindTimeout
	KindCodecNotSupported
	KindEncoderInit
	KindEncoderNotInitialized
	KindEncodingFailed
	KindInvalidEncoderConfig
	KindOutputInit
	KindVirtualCamera
	KindFileOutput
	KindStreaming
	KindRtmp
	KindSrt
	KindConnectionFailed
	KindMuxer
	KindScaling
	KindColorspaceConversion
	KindPipelineNotStarted
	KindPipelineAlreadyRunning
	KindPipeline
	KindAudioCapture
	KindAudioEncoder
	KindConfig
	KindIO
	KindInternal
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindPortal:                  "portal",
	KindPipeWire:                "pipewire",
	KindNoCaptureSource:         "no_capture_source",
	KindCapturePermissionDenied: "capture_permission_denied",
	KindCaptureNotStarted:       "capture_not_started",
	KindCaptureEnded:            "capture_ended",
	KindTimeout:                 "timeout",
	KindCodecNotSupported:       "codec_not_supported",
	KindEncoderInit:             "encoder_init",
	KindEncoderNotInitialized:   "encoder_not_initialized",
	KindEncodingFailed:          "encoding_failed",
	KindInvalidEncoderConfig:    "invalid_encoder_config",
	KindOutputInit:              "output_init",
	KindVirtualCamera:           "virtual_camera",
	KindFileOutput:              "file_output",
	KindStreaming:               "streaming",
	KindRtmp:                    "rtmp",
	KindSrt:                     "srt",
	KindConnectionFailed:        "connection_failed",
	KindMuxer:                   "muxer",
	KindScaling:                 "scaling",
	KindColorspaceConversion:    "colorspace_conversion",
	KindPipelineNotStarted:      "pipeline_not_started",
	KindPipelineAlreadyRunning:  "pipeline_already_running",
	KindPipeline:                "pipeline",
	KindAudioCapture:            "audio_capture",
	KindAudioEncoder:            "audio_encoder",
	KindConfig:                  "config",
	KindIO:                      "io",
	KindInternal:                "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// recoverable holds the kinds that callers may retry without aborting the
// pipeline: a failed encode, a failed stream write, or a generic pipeline
// hiccup. Everything else is fatal.
var recoverable = map[Kind]bool{
	KindEncodingFailed: true,
	KindStreaming:      true,
	KindPipeline:       true,
}

// Error wraps a Kind with a message and an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error with no message.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Newf creates an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error that records an underlying cause.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or any error it wraps) is a *Error of kind k.
func Is(err error, k Kind) bool {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind == k
	}
	return false
}

// IsRecoverable reports whether err is an *Error whose Kind is one the
// pipeline may retry without aborting.
func IsRecoverable(err error) bool {
	var werr *Error
	if errors.As(err, &werr) {
		return recoverable[werr.Kind]
	}
	return false
}

// Sentinel errors for simple equality comparisons where a Kind alone is
// sufficient context (no message needed at the call site).
var (
	ErrCaptureEnded         = New(KindCaptureEnded)
	ErrTimeout              = New(KindTimeout)
	ErrNoCaptureSource      = New(KindNoCaptureSource)
	ErrCaptureNotStarted    = New(KindCaptureNotStarted)
	ErrEncoderNotInit       = New(KindEncoderNotInitialized)
	ErrPipelineNotStarted   = New(KindPipelineNotStarted)
	ErrPipelineAlreadyStart = New(KindPipelineAlreadyRunning)
)

// Command waycast captures a desktop output, encodes it, and delivers the
// result to a file, a streaming endpoint, or a virtual camera.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"waycast/internal/config"
	"waycast/internal/encode"
	"waycast/internal/model"
	"waycast/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "info":
		runInfo(os.Args[2:])
	case "capture":
		runCapture(os.Args[2:])
	case "bench":
		runBench(os.Args[2:])
	case "presets":
		runPresets(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: waycast <info|capture|bench|presets> [flags]")
}

func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	fmt.Printf("waycast on %s/%s, %d CPUs\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Println("codecs: h264, hevc, av1 (NVENC tried first, software fallback)")
	fmt.Println("containers: matroska, mp4, webm, mpegts")
	fmt.Println("protocols: file, rtmp, srt, virtual camera (pipewire)")
}

func runCapture(args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	output := fs.String("output", "", `output: a file path ("out.mkv"), "camera", an rtmp:// URL, or an srt:// URL`)
	codec := fs.String("codec", "h264", "video codec: h264, hevc, av1")
	bitrate := fs.Int("bitrate", 6000, "target bitrate in kbps")
	resolution := fs.String("resolution", "", "output resolution WxH (default: same as capture)")
	fps := fs.Int("fps", 60, "capture and encode framerate")
	preset := fs.String("preset", "", "named preset; overrides --codec/--bitrate/--resolution/--fps")
	encoderBackend := fs.String("encoder", "auto", "encoder backend: auto, nvenc, cpu")
	audio := fs.Bool("audio", false, "capture and encode system audio alongside video")
	cursor := fs.Bool("cursor", true, "include the cursor in captured frames")
	cameraName := fs.String("camera-name", "waycast", "virtual camera node name, when --output=camera")
	srtMode := fs.String("srt-mode", "caller", "SRT connection role, when --output is an srt:// URL: caller, listener, rendezvous")
	srtLatency := fs.Int("srt-latency", 120, "SRT latency budget in milliseconds, clamped to [20, 8000]")
	srtPassphrase := fs.String("srt-passphrase", "", "SRT encryption passphrase (optional)")
	srtStreamID := fs.String("srt-streamid", "", "SRT streamid (optional; a random one is generated if --srt-passphrase is set and this is empty)")
	srtPBKeyLen := fs.Int("srt-pbkeylen", 0, "SRT encryption key length in bytes: 16, 24, or 32 (0 = omit)")
	srtMaxBW := fs.Int64("srt-maxbw", 0, "SRT maximum bandwidth in bytes/sec (0 = unset)")
	fs.Parse(args)

	if *output == "" {
		log.Fatal("--output is required")
	}

	var encCfg config.EncoderConfig
	if *preset != "" {
		p := config.Preset(*preset)
		if !presetExists(p) {
			log.Fatalf("unknown preset %q (see `waycast presets`)", *preset)
		}
		encCfg = p.EncoderConfig()
	} else {
		encCfg = config.DefaultEncoderConfig()
		codecKind, err := parseCodec(*codec)
		if err != nil {
			log.Fatal(err)
		}
		encCfg.Codec = codecKind
		encCfg.BitrateKbps = uint32(*bitrate)
		encCfg.Framerate = model.NewFramerate(*fps, 1)
		if *resolution != "" {
			res, err := parseResolution(*resolution)
			if err != nil {
				log.Fatal(err)
			}
			encCfg.Resolution = &res
		}
	}

	backend, err := parseEncoderBackend(*encoderBackend)
	if err != nil {
		log.Fatal(err)
	}
	encCfg.Backend = backend

	captureCfg := config.DefaultCaptureConfig()
	captureCfg.Framerate = encCfg.Framerate
	captureCfg.ShowCursor = *cursor
	captureCfg.CaptureAudio = *audio

	srtOpts := config.SRTOptions{
		Mode:       config.SRTMode(*srtMode),
		LatencyMs:  *srtLatency,
		Passphrase: *srtPassphrase,
		StreamID:   *srtStreamID,
		PBKeyLen:   *srtPBKeyLen,
		MaxBW:      *srtMaxBW,
	}
	if srtOpts.Passphrase != "" && srtOpts.StreamID == "" {
		srtOpts.StreamID = uuid.NewString()
	}

	outCfg, err := outputFromTarget(*output, srtOpts)
	if err != nil {
		log.Fatal(err)
	}

	p := pipeline.New(pipeline.Config{
		Capture:    captureCfg,
		Encoder:    encCfg,
		Output:     outCfg,
		CameraName: *cameraName,
		CameraDesc: "waycast virtual camera",
	})

	if err := p.Start(); err != nil {
		log.Fatal(err)
	}
	log.Printf("capturing to %s (%s @ %dkbps, %s)", *output, encCfg.Codec, encCfg.BitrateKbps, encCfg.Framerate)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received %s, shutting down...", sig)

	if err := p.Stop(); err != nil {
		log.Fatal(err)
	}

	stats := p.Stats()
	fmt.Printf("captured=%d encoded=%d dropped=%d bytes=%d avg_fps=%.1f avg_latency_ms=%.2f\n",
		stats.FramesCaptured, stats.FramesEncoded, stats.FramesDropped,
		stats.BytesWritten, stats.EncodingFPS, stats.AvgEncodeLatencyMs)
}

// outputFromTarget routes a CLI --output value to the sink it implies,
// per the file-suffix/URL-prefix rules: .mkv/.mp4/.webm/.ts pick a file
// muxer with the matching container, rtmp(s):// and srt:// pick the
// matching network muxer, and the literal "camera" picks the virtual
// source node.
func outputFromTarget(target string, srtOpts config.SRTOptions) (config.Output, error) {
	switch {
	case target == "camera":
		return config.Output{VirtualCamera: true}, nil
	case strings.HasPrefix(target, "rtmp://") || strings.HasPrefix(target, "rtmps://"):
		return config.Output{RTMPURL: target}, nil
	case strings.HasPrefix(target, "srt://"):
		return config.Output{SRTURL: target, SRT: srtOpts}, nil
	default:
		container := containerFromSuffix(target)
		return config.Output{FilePath: target, Container: container}, nil
	}
}

func containerFromSuffix(path string) config.Container {
	switch {
	case strings.HasSuffix(path, ".mp4"):
		return config.ContainerMP4
	case strings.HasSuffix(path, ".webm"):
		return config.ContainerWebM
	case strings.HasSuffix(path, ".ts"):
		return config.ContainerMPEGTS
	default:
		return config.ContainerMatroska
	}
}

func parseCodec(s string) (model.CodecKind, error) {
	switch s {
	case "h264":
		return model.CodecH264, nil
	case "hevc":
		return model.CodecHEVC, nil
	case "av1":
		return model.CodecAV1, nil
	default:
		return model.CodecUnknown, fmt.Errorf("--codec must be h264, hevc, or av1, got %q", s)
	}
}

func parseEncoderBackend(s string) (config.EncoderBackend, error) {
	switch s {
	case "auto":
		return config.EncoderBackendAuto, nil
	case "nvenc":
		return config.EncoderBackendNVENC, nil
	case "cpu":
		return config.EncoderBackendCPU, nil
	default:
		return "", fmt.Errorf("--encoder must be auto, nvenc, or cpu, got %q", s)
	}
}

func parseResolution(s string) (model.Resolution, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return model.Resolution{}, fmt.Errorf("--resolution must look like 1920x1080, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return model.Resolution{}, fmt.Errorf("--resolution width: %w", err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return model.Resolution{}, fmt.Errorf("--resolution height: %w", err)
	}
	return model.NewResolution(width, height), nil
}

func presetExists(p config.Preset) bool {
	for _, candidate := range config.AllPresets {
		if candidate == p {
			return true
		}
	}
	return false
}

func runPresets(args []string) {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	fs.Parse(args)

	fmt.Printf("%-16s %-6s %-10s %-5s %-8s %-10s %-14s %s\n",
		"NAME", "CODEC", "RES", "FPS", "KBPS", "PRESET", "TUNING", "GOP")
	for _, p := range config.AllPresets {
		c := p.EncoderConfig()
		res := "auto"
		if c.Resolution != nil {
			res = c.Resolution.String()
		}
		fmt.Printf("%-16s %-6s %-10s %-5s %-8d %-10s %-14s %d\n",
			p, c.Codec, res, c.Framerate, c.BitrateKbps, c.Preset, c.Tuning, c.GOPSize)
	}
}

// runBench feeds synthetic NV12 frames straight through an encoder Session,
// bypassing capture and output entirely, to measure raw encode throughput.
func runBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	codec := fs.String("codec", "h264", "video codec: h264, hevc, av1")
	frames := fs.Int("frames", 300, "number of synthetic frames to encode")
	bitrate := fs.Int("bitrate", 6000, "target bitrate in kbps")
	resolution := fs.String("resolution", "1920x1080", "synthetic frame resolution WxH")
	fps := fs.Int("fps", 60, "nominal framerate used for PTS stride and encoder tuning")
	encoderBackend := fs.String("encoder", "auto", "encoder backend: auto, nvenc, cpu")
	fs.Parse(args)

	codecKind, err := parseCodec(*codec)
	if err != nil {
		log.Fatal(err)
	}
	backend, err := parseEncoderBackend(*encoderBackend)
	if err != nil {
		log.Fatal(err)
	}
	res, err := parseResolution(*resolution)
	if err != nil {
		log.Fatal(err)
	}

	cfg := config.DefaultEncoderConfig()
	cfg.Codec = codecKind
	cfg.BitrateKbps = uint32(*bitrate)
	cfg.Framerate = model.NewFramerate(*fps, 1)
	cfg.Backend = backend

	enc, err := encode.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer enc.Close()

	frameDuration := cfg.Framerate.FrameDurationUs()
	frame := model.NewFrame(res.Width, res.Height, model.FormatNV12)

	start := time.Now()
	var encoded int
	for i := 0; i < *frames; i++ {
		frame.PTS = int64(i) * frameDuration
		pkt, err := enc.Encode(&frame)
		if err != nil {
			log.Fatalf("encode frame %d: %v", i, err)
		}
		if pkt != nil {
			encoded++
		}
	}
	flushed, err := enc.Flush()
	if err != nil {
		log.Fatal(err)
	}
	encoded += len(flushed)
	elapsed := time.Since(start)

	fps64 := float64(*frames) / elapsed.Seconds()
	msPerFrame := elapsed.Seconds() * 1000 / float64(*frames)
	fmt.Printf("encoded %d/%d frames (%s %s, %dx%d) in %s: %.1f fps, %.3f ms/frame\n",
		encoded, *frames, codecKind, backend, res.Width, res.Height, elapsed, fps64, msPerFrame)
}

package model

import "fmt"

// Framerate is a rational frames-per-second value, e.g. 60/1 or 30000/1001.
type Framerate struct {
	Num int
	Den int
}

// NewFramerate constructs a Framerate, defaulting Den to 1 when zero.
func NewFramerate(num, den int) Framerate {
	if den == 0 {
		den = 1
	}
	return Framerate{Num: num, Den: den}
}

// FPS returns the framerate as a float64.
func (f Framerate) FPS() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// FrameDurationUs returns the nominal duration of one frame in microseconds,
// floor(1e6 * den / num).
func (f Framerate) FrameDurationUs() int64 {
	if f.Num == 0 {
		return 0
	}
	return int64(1_000_000) * int64(f.Den) / int64(f.Num)
}

func (f Framerate) String() string {
	if f.Den == 1 {
		return fmt.Sprintf("%d", f.Num)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Common named framerates.
var (
	Framerate30  = Framerate{30, 1}
	Framerate60  = Framerate{60, 1}
	Framerate120 = Framerate{120, 1}
	Framerate240 = Framerate{240, 1}
)

package model

// Stats holds the monotone pipeline counters described in the data model.
// Callers that mutate a shared Stats concurrently must hold their own lock
// (see internal/pipeline.Tracker) — this type itself has no synchronization.
type Stats struct {
	FramesCaptured     uint64
	FramesEncoded      uint64
	FramesDropped      uint64
	BytesWritten       uint64
	EncodingFPS        float64
	AvgEncodeLatencyMs float64
}

// FramesWritten is an alias kept for readers that think in terms of the
// output stage rather than the encoder stage. It returns FramesEncoded: the
// pipeline keeps no separate count of packets a sink accepted, does not stop
// on a sink write error, and still counts a packet whose write failed.
func (s Stats) FramesWritten() uint64 {
	return s.FramesEncoded
}

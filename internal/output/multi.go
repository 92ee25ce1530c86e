package output

import (
	"sync"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

// multiOutput fans a single encoded stream out to several sinks (C5.f). A
// child failing to initialize only fails the whole sink if every child
// fails; once running, a per-write child failure is recorded but does not
// stop delivery to the others.
type multiOutput struct {
	mu       sync.Mutex
	children []OutputSink
	failed   []bool
	lastErrs []error
}

func newMultiOutput(children []config.Output) (OutputSink, error) {
	m := &multiOutput{}
	var firstErr error
	for _, cfg := range children {
		sink, err := New(cfg)
		if err != nil {
			m.children = append(m.children, nil)
			m.failed = append(m.failed, true)
			m.lastErrs = append(m.lastErrs, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.children = append(m.children, sink)
		m.failed = append(m.failed, false)
		m.lastErrs = append(m.lastErrs, nil)
	}
	if len(m.children) == 0 {
		return nil, werrors.New(werrors.KindOutputInit)
	}
	if allFailed(m.failed) {
		return nil, werrors.Wrap(werrors.KindOutputInit, firstErr, "all multi-output children failed")
	}
	return m, nil
}

func allFailed(failed []bool) bool {
	for _, f := range failed {
		if !f {
			return false
		}
	}
	return true
}

func (m *multiOutput) InitWithCodec(videoParams *model.CodecParams, audioParams *model.AudioParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	anyOK := false
	for i, child := range m.children {
		if m.failed[i] || child == nil {
			continue
		}
		if err := child.InitWithCodec(videoParams, audioParams); err != nil {
			m.failed[i] = true
			m.lastErrs[i] = err
			logger.Printf("multi-output child %d init failed: %v", i, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		anyOK = true
	}
	if !anyOK {
		return werrors.Wrap(werrors.KindOutputInit, firstErr, "all multi-output children failed to init")
	}
	return nil
}

func (m *multiOutput) Write(pkt *model.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	anyOK := false
	for i, child := range m.children {
		if m.failed[i] || child == nil {
			continue
		}
		if err := child.Write(pkt); err != nil {
			m.lastErrs[i] = err
			logger.Printf("multi-output child %d write failed: %v", i, err)
			continue
		}
		anyOK = true
	}
	if !anyOK {
		return werrors.New(werrors.KindStreaming)
	}
	return nil
}

func (m *multiOutput) WriteAudio(pkt *model.AudioPacket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	anyOK := false
	for i, child := range m.children {
		if m.failed[i] || child == nil {
			continue
		}
		if err := child.WriteAudio(pkt); err != nil {
			m.lastErrs[i] = err
			logger.Printf("multi-output child %d audio write failed: %v", i, err)
			continue
		}
		anyOK = true
	}
	if !anyOK {
		return werrors.New(werrors.KindStreaming)
	}
	return nil
}

func (m *multiOutput) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, child := range m.children {
		if child == nil {
			continue
		}
		if err := child.Finish(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiOutput) BytesWritten() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint64
	for _, child := range m.children {
		if child == nil {
			continue
		}
		if n := child.BytesWritten(); n > max {
			max = n
		}
	}
	return max
}

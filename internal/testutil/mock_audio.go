package testutil

import (
	"context"
	"sync"

	"github.com/MoiraAI2024/widget/internal/capture"
)

// MockStream is an in-memory capture.Stream for testing.
// Emit pushes a chunk through the data callback as the hardware would.
type MockStream struct {
	mu sync.Mutex

	StreamFormat capture.Format
	FlushChunks  [][]byte // delivered during Stop, before it returns
	StartErr     error
	StopErr      error
	CloseErr     error

	onData     func([]byte)
	started    bool
	StopCalls  int
	CloseCalls int
}

func NewMockStream() *MockStream {
	return &MockStream{
		StreamFormat: capture.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
	}
}

func (s *MockStream) Start(onData func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	s.onData = onData
	s.started = true
	return nil
}

// Emit delivers chunk to the data callback if the stream is started
func (s *MockStream) Emit(chunk []byte) {
	s.mu.Lock()
	cb := s.onData
	active := s.started
	s.mu.Unlock()
	if active && cb != nil {
		cb(chunk)
	}
}

func (s *MockStream) Stop() error {
	s.mu.Lock()
	s.StopCalls++
	cb := s.onData
	flush := s.FlushChunks
	s.mu.Unlock()

	for _, c := range flush {
		if cb != nil {
			cb(c)
		}
	}

	s.mu.Lock()
	s.started = false
	s.onData = nil
	s.mu.Unlock()

	return s.StopErr
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	s.started = false
	s.onData = nil
	return s.CloseErr
}

func (s *MockStream) Format() capture.Format {
	return s.StreamFormat
}

// Closes returns how many times Close was called
func (s *MockStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCalls
}

// Started reports whether the stream is delivering data
func (s *MockStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// MockDevice hands out MockStreams. OpenErrs are consumed one per Open call
// before any stream is handed out.
type MockDevice struct {
	mu sync.Mutex

	OpenErrs  []error
	Gate      chan struct{} // if set, Open waits for it (permission prompt)
	Streams   []*MockStream
	NewStream func() *MockStream

	OpenCalls int
}

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (d *MockDevice) Open(ctx context.Context) (capture.Stream, error) {
	d.mu.Lock()
	d.OpenCalls++
	gate := d.Gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.OpenErrs) > 0 {
		err := d.OpenErrs[0]
		d.OpenErrs = d.OpenErrs[1:]
		return nil, err
	}

	var s *MockStream
	if d.NewStream != nil {
		s = d.NewStream()
	} else {
		s = NewMockStream()
	}
	d.Streams = append(d.Streams, s)
	return s, nil
}

// Last returns the most recently opened stream, or nil
func (d *MockDevice) Last() *MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Streams) == 0 {
		return nil
	}
	return d.Streams[len(d.Streams)-1]
}

// Opens returns how many times Open was called
func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.OpenCalls
}

// MockPlayer records playback requests. Each Play blocks until Finish is
// called or ctx is cancelled.
type MockPlayer struct {
	mu     sync.Mutex
	Played [][]byte
	finish chan error
}

func NewMockPlayer() *MockPlayer {
	return &MockPlayer{finish: make(chan error, 1)}
}

func (p *MockPlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	p.Played = append(p.Played, audio)
	p.mu.Unlock()

	select {
	case err := <-p.finish:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish ends the current playback with err (nil for natural end)
func (p *MockPlayer) Finish(err error) {
	p.finish <- err
}

// Plays returns how many times Play was called
func (p *MockPlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Played)
}

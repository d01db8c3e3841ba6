package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotRunning is returned when Finish is called on a session that was
// already stopped or released
var ErrNotRunning = errors.New("capture session not running")

// ErrPermissionDenied is returned by a Device when the user refused
// microphone access
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrUnavailable is returned by a Device that has no usable input hardware
var ErrUnavailable = errors.New("audio capture unavailable")

// Format describes the PCM emitted by a Stream
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Device acquires microphone streams.
// Open may block while the operating system asks the user for permission.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open microphone acquisition.
//
// Start begins delivering chunks to onData, in order, zero or more times.
// Stop flushes any buffered audio through onData and returns only once no
// further callbacks can happen. Close releases the underlying hardware and
// must be safe to call more than once.
type Stream interface {
	Start(onData func(chunk []byte)) error
	Stop() error
	Close() error
	Format() Format
}

// Session owns one Stream and the chunks it produced
type Session struct {
	stream  Stream
	mu      sync.Mutex
	chunks  [][]byte
	running bool
	release sync.Once
	relErr  error
}

// Begin opens a stream on dev and starts accumulating chunks.
// On any error the stream, if one was opened, is released before returning.
func Begin(ctx context.Context, dev Device) (*Session, error) {
	if dev == nil {
		return nil, fmt.Errorf("no capture device")
	}

	stream, err := dev.Open(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{stream: stream}
	if err := stream.Start(s.append); err != nil {
		s.Release()
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	return s, nil
}

// append is the stream's data callback
func (s *Session) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	s.mu.Lock()
	s.chunks = append(s.chunks, buf)
	s.mu.Unlock()
}

// Running reports whether the stream is still delivering data
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Finish stops the stream, releases it unconditionally and returns what
// was recorded. A flush failure is returned after the release.
func (s *Session) Finish() (*Recording, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil, ErrNotRunning
	}
	s.running = false
	s.mu.Unlock()

	stopErr := s.stream.Stop()
	relErr := s.Release()

	if stopErr != nil {
		return nil, fmt.Errorf("failed to stop capture: %w", stopErr)
	}
	if relErr != nil {
		return nil, relErr
	}

	s.mu.Lock()
	chunks := s.chunks
	s.chunks = nil
	s.mu.Unlock()

	return &Recording{Chunks: chunks, Format: s.stream.Format()}, nil
}

// Release closes the underlying stream exactly once.
// Later calls return the result of the first.
func (s *Session) Release() error {
	s.release.Do(func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		if err := s.stream.Close(); err != nil {
			s.relErr = fmt.Errorf("failed to release capture stream: %w", err)
		}
	})
	return s.relErr
}

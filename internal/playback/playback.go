package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/go-mp3"
)

// ErrEmptyAudio is returned when there is nothing to play
var ErrEmptyAudio = errors.New("audio payload is empty")

// Player plays one decoded response.
// Play blocks until the audio ends (nil) or fails (error); each call has
// exactly one outcome.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Output receives interleaved stereo int16 frames
type Output interface {
	Write(frames []int16) error
	Close() error
}

// OpenOutputFunc opens an output for the given sample rate
type OpenOutputFunc func(sampleRate int, framesPerBuffer int) (Output, error)

// Source is decoded interleaved stereo 16-bit little-endian PCM
type Source interface {
	io.Reader
	SampleRate() int
}

// DecodeFunc turns an encoded payload into PCM
type DecodeFunc func(r io.Reader) (Source, error)

// DecodeMP3 decodes MP3 with go-mp3
func DecodeMP3(r io.Reader) (Source, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// MP3Player decodes MP3 responses and writes them to an audio output
type MP3Player struct {
	open            OpenOutputFunc
	decode          DecodeFunc
	framesPerBuffer int
	mu              sync.Mutex
	playing         bool
}

var _ Player = (*MP3Player)(nil)

// NewMP3Player creates a player on the default PortAudio output device.
// PortAudio must already be initialized.
func NewMP3Player() *MP3Player {
	return NewMP3PlayerWithOutput(OpenPortAudioOutput)
}

// NewMP3PlayerWithOutput creates a player writing to outputs from open
func NewMP3PlayerWithOutput(open OpenOutputFunc) *MP3Player {
	return &MP3Player{open: open, decode: DecodeMP3, framesPerBuffer: 2048}
}

// Play decodes audio and plays it to the end or until ctx is cancelled.
// The output is always closed before Play returns.
func (p *MP3Player) Play(ctx context.Context, audio []byte) (err error) {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("playback already in progress")
	}
	p.playing = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	dec, err := p.decode(bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}

	out, err := p.open(dec.SampleRate(), p.framesPerBuffer)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close audio output: %w", cerr)
		}
	}()

	// 16-bit stereo: 4 bytes per frame
	raw := make([]byte, p.framesPerBuffer*4)
	frames := make([]int16, p.framesPerBuffer*2)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := io.ReadFull(dec, raw)
		if n > 0 {
			samples := n / 2
			for i := 0; i < samples; i++ {
				frames[i] = int16(raw[2*i]) | int16(raw[2*i+1])<<8
			}
			// Pad the final partial buffer with silence
			for i := samples; i < len(frames); i++ {
				frames[i] = 0
			}
			if err := out.Write(frames); err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("failed to decode audio: %w", rerr)
		}
	}
}

// portAudioOutput is a blocking-write PortAudio output stream
type portAudioOutput struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenPortAudioOutput opens a stereo stream on the default output device
func OpenPortAudioOutput(sampleRate int, framesPerBuffer int) (Output, error) {
	o := &portAudioOutput{buf: make([]int16, framesPerBuffer*2)}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, &o.buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	o.stream = stream
	return o, nil
}

func (o *portAudioOutput) Write(frames []int16) error {
	copy(o.buf, frames)
	return o.stream.Write()
}

func (o *portAudioOutput) Close() error {
	stopErr := o.stream.Stop()
	closeErr := o.stream.Close()
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

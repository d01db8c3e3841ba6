package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MoiraAI2024/widget/internal/capture"
)

// PortAudioDriver implements InputDriver using PortAudio
type PortAudioDriver struct {
	config      Config
	device      *portaudio.DeviceInfo
	latency     time.Duration
	active      *inputStream
	mu          sync.Mutex
	initialized bool
}

var _ InputDriver = (*PortAudioDriver)(nil)

// NewPortAudioDriver creates a new PortAudio driver
func NewPortAudioDriver() (*PortAudioDriver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioDriver{config: DefaultConfig()}, nil
}

// ListDevices returns a list of available audio input devices
func (d *PortAudioDriver) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// If we can't get the default device, continue without marking any as default
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, Device{
			ID:        i,
			Name:      dev.Name,
			IsDefault: defaultInput != nil && dev.Name == defaultInput.Name,
		})
	}

	return result, nil
}

// Initialize resolves the input device for the given configuration
func (d *PortAudioDriver) Initialize(config Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil {
		return fmt.Errorf("cannot initialize while a stream is open")
	}

	var device *portaudio.DeviceInfo
	var err error

	if config.DeviceID == -1 {
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return fmt.Errorf("failed to get default input device: %w", err)
		}
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}
		if config.DeviceID < 0 || config.DeviceID >= len(devices) {
			return fmt.Errorf("invalid device ID: %d", config.DeviceID)
		}
		device = devices[config.DeviceID]
	}

	if device.MaxInputChannels <= 0 {
		return fmt.Errorf("selected device '%s' (ID: %d) has no input channels (output-only device)",
			device.Name, config.DeviceID)
	}

	switch config.Latency {
	case LowLatency:
		d.latency = device.DefaultLowInputLatency
	default:
		d.latency = device.DefaultHighInputLatency
	}

	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = DefaultConfig().FramesPerBuffer
	}

	d.device = device
	d.config = config
	d.initialized = true

	return nil
}

// Available reports whether an input device is ready to be opened
func (d *PortAudioDriver) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized && d.device != nil
}

// Open opens a new input stream on the selected device.
// Only one stream may be held at a time.
func (d *PortAudioDriver) Open(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil, ErrNoInputDevice
	}
	if d.active != nil {
		return nil, ErrBusy
	}

	s := &inputStream{driver: d, format: d.config.Format()}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   d.device,
			Channels: d.config.Channels,
			Latency:  d.latency,
		},
		SampleRate:      float64(d.config.SampleRate),
		FramesPerBuffer: d.config.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	s.stream = stream
	d.active = s
	return s, nil
}

// release forgets s once it has been closed
func (d *PortAudioDriver) release(s *inputStream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == s {
		d.active = nil
	}
}

// Close releases all resources
func (d *PortAudioDriver) Close() error {
	d.mu.Lock()
	active := d.active
	d.mu.Unlock()

	if active != nil {
		if err := active.Close(); err != nil {
			return err
		}
	}

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}

	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
	return nil
}

// inputStream is one open PortAudio input stream
type inputStream struct {
	driver  *PortAudioDriver
	stream  *portaudio.Stream
	format  capture.Format
	mu      sync.Mutex
	onData  func([]byte)
	running bool
	closed  bool
}

// callback is called by PortAudio when audio data is available
func (s *inputStream) callback(in []int16) {
	s.mu.Lock()
	cb := s.onData
	running := s.running
	s.mu.Unlock()

	if running && cb != nil {
		cb(encodePCM(in))
	}
}

func (s *inputStream) Start(onData func([]byte)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("stream closed")
	}
	s.onData = onData
	s.running = true
	s.mu.Unlock()

	if err := s.stream.Start(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

// Stop waits for PortAudio to drain pending buffers through the callback
func (s *inputStream) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.stream.Stop()

	s.mu.Lock()
	s.running = false
	s.onData = nil
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	wasRunning := s.running
	s.running = false
	s.onData = nil
	s.mu.Unlock()

	defer s.driver.release(s)

	if wasRunning {
		// Abort skips draining; no more callbacks are wanted
		if err := s.stream.Abort(); err != nil {
			s.stream.Close()
			return fmt.Errorf("failed to abort stream: %w", err)
		}
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

func (s *inputStream) Format() capture.Format {
	return s.format
}

package audio

import (
	"errors"
	"fmt"

	"github.com/MoiraAI2024/widget/internal/capture"
)

// ErrBusy is returned by Open while a previously opened stream is still held
var ErrBusy = errors.New("audio input is already in use")

// ErrNoInputDevice is returned when no input-capable device exists
var ErrNoInputDevice = fmt.Errorf("%w: no audio input device available", capture.ErrUnavailable)

// Device represents an audio input device
type Device struct {
	ID        int
	Name      string
	IsDefault bool
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// Config holds audio configuration
type Config struct {
	DeviceID        int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	Latency         LatencyMode
}

// DefaultConfig returns the default audio configuration
// Sample rate: 16kHz mono, which is what speech backends expect
func DefaultConfig() Config {
	return Config{
		DeviceID:        -1, // -1 means use default device
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 1024,
		Latency:         HighStability,
	}
}

// Format returns the PCM format streams opened with this config produce
func (c Config) Format() capture.Format {
	return capture.Format{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		BitsPerSample: 16,
	}
}

// InputDriver is a microphone backend usable as a capture.Device
type InputDriver interface {
	capture.Device

	// ListDevices returns a list of available audio input devices
	ListDevices() ([]Device, error)

	// Initialize selects the device and format used by later Open calls
	Initialize(config Config) error

	// Available reports whether an input device has been selected
	Available() bool

	// Close releases all resources
	Close() error
}

// encodePCM converts int16 samples to little-endian bytes
func encodePCM(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		data[i*2] = byte(sample)
		data[i*2+1] = byte(sample >> 8)
	}
	return data
}

package controller

import (
	"fmt"
	"strings"
)

// State represents the current interaction state
type State int

const (
	// Idle means waiting for the user; the talk control is visible
	Idle State = iota
	// Capturing means the microphone is recording an utterance
	Capturing
	// Uploading means the utterance is being sent to the inference endpoint
	Uploading
	// Speaking means the response is being played back
	Speaking
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Uploading:
		return "Uploading"
	case Speaking:
		return "Speaking"
	default:
		return "Unknown"
	}
}

// MarshalText lets State appear by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// ErrorKind classifies failures that send the controller back to Idle
type ErrorKind int

const (
	// KindCapability means capture or network support is missing
	KindCapability ErrorKind = iota
	// KindPermission means microphone acquisition was refused or failed
	KindPermission
	// KindCapture means the recording could not be stopped and flushed
	KindCapture
	// KindTransport means the upload failed or got a non-2xx status
	KindTransport
	// KindSoftContent means a well-formed response carried no audio
	KindSoftContent
	// KindPlayback means the response audio could not be decoded or played
	KindPlayback
)

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	switch k {
	case KindCapability:
		return "capability"
	case KindPermission:
		return "permission"
	case KindCapture:
		return "capture"
	case KindTransport:
		return "transport"
	case KindSoftContent:
		return "soft-content"
	case KindPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Error is a classified controller failure
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Capabilities is evaluated once when the controller is created
type Capabilities struct {
	Capture bool `json:"capture"`
	Network bool `json:"network"`
}

// Err describes what is missing, or returns nil when both are present
func (c Capabilities) Err() error {
	switch {
	case !c.Capture && !c.Network:
		return fmt.Errorf("audio capture and network access are unavailable")
	case !c.Capture:
		return fmt.Errorf("audio capture is unavailable")
	case !c.Network:
		return fmt.Errorf("network access is unavailable")
	}
	return nil
}

package controller

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Idle, "Idle"},
		{Capturing, "Capturing"},
		{Uploading, "Uploading"},
		{Speaking, "Speaking"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"state": Uploading})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"state":"uploading"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{KindCapability, "capability"},
		{KindPermission, "permission"},
		{KindCapture, "capture"},
		{KindTransport, "transport"},
		{KindSoftContent, "soft-content"},
		{KindPlayback, "playback"},
		{ErrorKind(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&Error{Kind: KindTransport, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("Expected Error to unwrap to its cause")
	}
	if err.Error() != "transport error: connection reset" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestCapabilities_Err(t *testing.T) {
	tests := []struct {
		name    string
		caps    Capabilities
		wantErr bool
	}{
		{"all", Capabilities{Capture: true, Network: true}, false},
		{"no capture", Capabilities{Network: true}, true},
		{"no network", Capabilities{Capture: true}, true},
		{"none", Capabilities{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.caps.Err(); (err != nil) != tt.wantErr {
				t.Errorf("Err() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package controller

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/MoiraAI2024/widget/internal/capture"
	"github.com/MoiraAI2024/widget/internal/inference"
	"github.com/MoiraAI2024/widget/internal/session"
	"github.com/MoiraAI2024/widget/internal/testutil"
)

const testEndpoint = "https://example.test/v1/ai_teacher"

// fakeView records UI calls and flags any that contradict the state
type fakeView struct {
	mu         sync.Mutex
	state      State
	recording  bool
	speaking   bool
	visible    bool
	history    []State
	violations []string
}

func (v *fakeView) SetRecording(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on && v.state != Capturing {
		v.violations = append(v.violations, fmt.Sprintf("recording indicator on in %s", v.state))
	}
	v.recording = on
}

func (v *fakeView) SetSpeaking(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on && v.state != Speaking {
		v.violations = append(v.violations, fmt.Sprintf("speaking indicator on in %s", v.state))
	}
	v.speaking = on
}

func (v *fakeView) SetControlVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if visible && (v.state == Uploading || v.state == Speaking) {
		v.violations = append(v.violations, fmt.Sprintf("control shown in %s", v.state))
	}
	v.visible = visible
}

func (v *fakeView) SetState(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if (s == Uploading || s == Speaking) && v.visible {
		v.violations = append(v.violations, fmt.Sprintf("control visible on entering %s", s))
	}
	if s == Idle && (v.recording || v.speaking) {
		v.violations = append(v.violations, "stale indicator on entering Idle")
	}
	if len(v.history) == 0 || v.history[len(v.history)-1] != s {
		v.history = append(v.history, s)
	}
	v.state = s
}

func (v *fakeView) snapshot() (state State, recording, speaking, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.recording, v.speaking, v.visible
}

func (v *fakeView) visited(s State) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, h := range v.history {
		if h == s {
			return true
		}
	}
	return false
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []ErrorKind
	errs   []error
}

func (n *fakeNotifier) Alert(kind ErrorKind, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, kind)
	n.errs = append(n.errs, err)
}

func (n *fakeNotifier) kinds() []ErrorKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ErrorKind(nil), n.alerts...)
}

type fakeService struct {
	mu      sync.Mutex
	uploads []inference.Upload
	respond func(ctx context.Context, up inference.Upload) (*inference.Response, error)
}

func (s *fakeService) Infer(ctx context.Context, up inference.Upload) (*inference.Response, error) {
	s.mu.Lock()
	s.uploads = append(s.uploads, up)
	respond := s.respond
	s.mu.Unlock()
	if respond == nil {
		return audioResponse([]byte("mp3-bytes")), nil
	}
	return respond(ctx, up)
}

func (s *fakeService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func (s *fakeService) upload(i int) inference.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[i]
}

func audioResponse(audio []byte) *inference.Response {
	return &inference.Response{Audio: base64.StdEncoding.EncodeToString(audio)}
}

type harness struct {
	t        *testing.T
	c        *Controller
	device   *testutil.MockDevice
	player   *testutil.MockPlayer
	service  *fakeService
	view     *fakeView
	notifier *fakeNotifier
	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

func newHarness(t *testing.T, opts ...func(*Config, *Deps)) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		device:   testutil.NewMockDevice(),
		player:   testutil.NewMockPlayer(),
		service:  &fakeService{},
		view:     &fakeView{},
		notifier: &fakeNotifier{},
		done:     make(chan error, 1),
	}

	config := Config{
		Endpoint:      testEndpoint,
		QuestionText:  "Αυτό είναι ένα τετράδιο.",
		UploadTimeout: 5 * time.Second,
	}
	deps := Deps{
		Device:   h.device,
		Service:  h.service,
		Player:   h.player,
		View:     h.view,
		Notifier: h.notifier,
		Logger:   zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&config, &deps)
	}

	h.c = New(config, deps)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.c.Run(ctx) }()

	t.Cleanup(func() {
		h.stop()
		h.view.mu.Lock()
		defer h.view.mu.Unlock()
		for _, v := range h.view.violations {
			t.Errorf("UI inconsistency: %s", v)
		}
	})

	return h
}

// stop cancels Run and waits for teardown; safe to call twice
func (h *harness) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		select {
		case err := <-h.done:
			if err != nil {
				h.t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			h.t.Fatal("Run did not return after cancel")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func (h *harness) waitState(s State) {
	h.t.Helper()
	waitFor(h.t, "state "+s.String(), func() bool {
		vs, _, _, _ := h.view.snapshot()
		return h.c.State() == s && vs == s
	})
}

func (h *harness) waitAlerts(n int) []ErrorKind {
	h.t.Helper()
	waitFor(h.t, fmt.Sprintf("%d alerts", n), func() bool {
		return len(h.notifier.kinds()) >= n
	})
	return h.notifier.kinds()
}

// startCapture toggles into Capturing and returns the opened stream
func (h *harness) startCapture() *testutil.MockStream {
	h.t.Helper()
	h.c.Toggle()
	h.waitState(Capturing)
	return h.device.Last()
}

// backToIdle waits until a cycle that passed through Uploading ends
func (h *harness) backToIdle() {
	h.t.Helper()
	waitFor(h.t, "return to Idle after upload", func() bool {
		state, _, _, visible := h.view.snapshot()
		return h.view.visited(Uploading) && state == Idle && visible && h.c.State() == Idle
	})
}

func TestNew(t *testing.T) {
	h := newHarness(t)

	if h.c.State() != Idle {
		t.Errorf("Expected initial state Idle, got %s", h.c.State())
	}
	if !session.Valid(h.c.SessionID()) {
		t.Errorf("Expected UUID-shaped session id, got %q", h.c.SessionID())
	}
	if len(h.c.SessionID()) != 36 {
		t.Errorf("Expected 36-character session id, got %d", len(h.c.SessionID()))
	}
	if caps := h.c.Capabilities(); !caps.Capture || !caps.Network {
		t.Errorf("Expected full capabilities, got %+v", caps)
	}
}

func TestNew_IndependentInstances(t *testing.T) {
	a := New(DefaultConfig(), Deps{})
	b := New(DefaultConfig(), Deps{})

	if a.SessionID() == b.SessionID() {
		t.Error("Expected each controller to have its own session id")
	}
}

func TestCapabilities(t *testing.T) {
	device := testutil.NewMockDevice()
	service := &fakeService{}

	tests := []struct {
		name     string
		endpoint string
		deps     Deps
		want     Capabilities
	}{
		{"all present", testEndpoint, Deps{Device: device, Service: service}, Capabilities{true, true}},
		{"no device", testEndpoint, Deps{Service: service}, Capabilities{false, true}},
		{"permission denied", testEndpoint, Deps{Device: device, Service: service, MicrophoneDenied: func() bool { return true }}, Capabilities{true, true}},
		{"permission granted", testEndpoint, Deps{Device: device, Service: service, MicrophoneDenied: func() bool { return false }}, Capabilities{true, true}},
		{"no service", testEndpoint, Deps{Device: device}, Capabilities{true, false}},
		{"relative endpoint", "/v1/ai_teacher", Deps{Device: device, Service: service}, Capabilities{true, false}},
		{"unsupported scheme", "ftp://example.test/upload", Deps{Device: device, Service: service}, Capabilities{true, false}},
		{"empty endpoint", "", Deps{Device: device, Service: service}, Capabilities{true, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{Endpoint: tt.endpoint}, tt.deps)
			if got := c.Capabilities(); got != tt.want {
				t.Errorf("Capabilities() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToggle_CapabilityMissing(t *testing.T) {
	h := newHarness(t, func(c *Config, d *Deps) { c.Endpoint = "not a url" })

	h.c.Toggle()
	kinds := h.waitAlerts(1)

	if kinds[0] != KindCapability {
		t.Errorf("Expected capability error, got %s", kinds[0])
	}
	if h.c.State() != Idle {
		t.Errorf("Expected Idle, got %s", h.c.State())
	}
	if h.device.Opens() != 0 {
		t.Errorf("Expected no capture session to be opened, got %d opens", h.device.Opens())
	}
	if _, recording, _, _ := h.view.snapshot(); recording {
		t.Error("Recording indicator should be unchanged")
	}
}

func TestToggle_MicrophoneDenied(t *testing.T) {
	h := newHarness(t, func(c *Config, d *Deps) {
		d.MicrophoneDenied = func() bool { return true }
	})

	h.c.Toggle()
	kinds := h.waitAlerts(1)

	if kinds[0] != KindPermission {
		t.Errorf("Expected permission error, got %s", kinds[0])
	}
	if h.c.State() != Idle {
		t.Errorf("Expected Idle, got %s", h.c.State())
	}
	if h.device.Opens() != 0 {
		t.Errorf("Expected no capture session to be opened, got %d opens", h.device.Opens())
	}
}

func TestFullCycle(t *testing.T) {
	h := newHarness(t)

	stream := h.startCapture()
	if _, recording, _, visible := h.view.snapshot(); !recording || !visible {
		t.Errorf("Expected recording indicator and visible control, got recording=%v visible=%v", recording, visible)
	}

	stream.Emit([]byte{1, 2})
	stream.Emit([]byte{3, 4})
	stream.FlushChunks = [][]byte{{5, 6}}

	h.c.Toggle()
	h.waitState(Speaking)

	if _, recording, speaking, visible := h.view.snapshot(); recording || !speaking || visible {
		t.Errorf("Speaking UI wrong: recording=%v speaking=%v visible=%v", recording, speaking, visible)
	}
	if stream.Closes() != 1 {
		t.Errorf("Expected stream released once, got %d", stream.Closes())
	}

	up := h.service.upload(0)
	if up.SessionID != h.c.SessionID() {
		t.Errorf("Upload carried session id %q, want %q", up.SessionID, h.c.SessionID())
	}
	if up.QuestionText != "Αυτό είναι ένα τετράδιο." {
		t.Errorf("Unexpected question text %q", up.QuestionText)
	}
	if up.Filename != "recording.wav" {
		t.Errorf("Expected recording.wav, got %q", up.Filename)
	}
	if !bytes.Equal(up.Audio[44:], []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Expected chunks in order after WAV header, got %v", up.Audio[44:])
	}

	waitFor(t, "playback", func() bool { return h.player.Plays() == 1 })
	if string(h.player.Played[0]) != "mp3-bytes" {
		t.Errorf("Expected decoded audio to be played, got %q", h.player.Played[0])
	}

	h.player.Finish(nil)
	h.waitState(Idle)

	if _, recording, speaking, visible := h.view.snapshot(); recording || speaking || !visible {
		t.Errorf("Idle UI wrong: recording=%v speaking=%v visible=%v", recording, speaking, visible)
	}
	if kinds := h.notifier.kinds(); len(kinds) != 0 {
		t.Errorf("Expected no alerts, got %v", kinds)
	}
}

func TestSessionIDStableAcrossCycles(t *testing.T) {
	h := newHarness(t)
	id := h.c.SessionID()

	for i := 0; i < 3; i++ {
		h.startCapture()
		h.c.Toggle()
		h.waitState(Speaking)
		h.player.Finish(nil)
		h.waitState(Idle)
	}

	if h.service.count() != 3 {
		t.Fatalf("Expected 3 uploads, got %d", h.service.count())
	}
	for i := 0; i < 3; i++ {
		if got := h.service.upload(i).SessionID; got != id {
			t.Errorf("Upload %d carried session id %q, want %q", i, got, id)
		}
	}
	if h.c.SessionID() != id {
		t.Error("Session id changed")
	}
}

func TestEmptyCaptureStillUploads(t *testing.T) {
	h := newHarness(t)

	h.startCapture()
	h.c.Toggle()

	waitFor(t, "upload", func() bool { return h.service.count() == 1 })
	up := h.service.upload(0)
	if len(up.Audio) != 44 {
		t.Errorf("Expected header-only WAV, got %d bytes", len(up.Audio))
	}

	h.waitState(Speaking)
	h.player.Finish(nil)
	h.waitState(Idle)
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name    string
		respond func(context.Context, inference.Upload) (*inference.Response, error)
		alert   []ErrorKind
	}{
		{
			name: "status 500",
			respond: func(context.Context, inference.Upload) (*inference.Response, error) {
				return nil, &inference.StatusError{StatusCode: http.StatusInternalServerError}
			},
			alert: []ErrorKind{KindTransport},
		},
		{
			name: "transport error",
			respond: func(context.Context, inference.Upload) (*inference.Response, error) {
				return nil, errors.New("connection refused")
			},
			alert: []ErrorKind{KindTransport},
		},
		{
			name: "missing audio field",
			respond: func(context.Context, inference.Upload) (*inference.Response, error) {
				return &inference.Response{}, nil
			},
			alert: nil,
		},
		{
			name: "invalid base64",
			respond: func(context.Context, inference.Upload) (*inference.Response, error) {
				return &inference.Response{Audio: "%%%"}, nil
			},
			alert: []ErrorKind{KindPlayback},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.service.respond = tt.respond

			h.startCapture()
			h.c.Toggle()
			h.backToIdle()

			if h.player.Plays() != 0 {
				t.Errorf("Expected no playback, got %d", h.player.Plays())
			}
			if h.view.visited(Speaking) {
				t.Error("Should never have entered Speaking")
			}

			kinds := h.notifier.kinds()
			if len(kinds) != len(tt.alert) {
				t.Fatalf("Expected alerts %v, got %v", tt.alert, kinds)
			}
			for i := range kinds {
				if kinds[i] != tt.alert[i] {
					t.Errorf("Expected alert %s, got %s", tt.alert[i], kinds[i])
				}
			}
		})
	}
}

func TestTransportErrorIsClassified(t *testing.T) {
	h := newHarness(t)
	h.service.respond = func(context.Context, inference.Upload) (*inference.Response, error) {
		return nil, &inference.StatusError{StatusCode: http.StatusBadGateway}
	}

	h.startCapture()
	h.c.Toggle()
	h.waitAlerts(1)

	h.notifier.mu.Lock()
	err := h.notifier.errs[0]
	h.notifier.mu.Unlock()

	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindTransport {
		t.Fatalf("Expected *Error with transport kind, got %v", err)
	}
	var se *inference.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected wrapped StatusError, got %v", err)
	}
}

func TestPlaybackError(t *testing.T) {
	h := newHarness(t)

	h.startCapture()
	h.c.Toggle()
	h.waitState(Speaking)

	h.player.Finish(errors.New("output device lost"))
	kinds := h.waitAlerts(1)
	h.waitState(Idle)

	if kinds[0] != KindPlayback {
		t.Errorf("Expected playback error, got %s", kinds[0])
	}
	if _, _, speaking, visible := h.view.snapshot(); speaking || !visible {
		t.Errorf("Expected speaking cleared and control visible, got speaking=%v visible=%v", speaking, visible)
	}
}

func TestAcquisitionErrorThenRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"permission denied", capture.ErrPermissionDenied, KindPermission},
		{"prompt error", errors.New("prompt dismissed"), KindPermission},
		{"no hardware", capture.ErrUnavailable, KindCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.device.OpenErrs = []error{tt.err}

			h.c.Toggle()
			kinds := h.waitAlerts(1)
			if kinds[0] != tt.kind {
				t.Errorf("Expected %s error, got %s", tt.kind, kinds[0])
			}
			if h.c.State() != Idle {
				t.Errorf("Expected Idle after acquisition failure, got %s", h.c.State())
			}
			if h.view.visited(Capturing) {
				t.Error("Should not have entered Capturing")
			}

			stream := h.startCapture()
			if stream == nil || !stream.Started() {
				t.Fatal("Expected second attempt to open a running stream")
			}
			if h.device.Opens() != 2 {
				t.Errorf("Expected 2 opens, got %d", h.device.Opens())
			}
		})
	}
}

func TestStopFlushError(t *testing.T) {
	h := newHarness(t)
	h.device.NewStream = func() *testutil.MockStream {
		s := testutil.NewMockStream()
		s.StopErr = errors.New("flush failed")
		return s
	}

	stream := h.startCapture()
	h.c.Toggle()
	kinds := h.waitAlerts(1)
	h.waitState(Idle)

	if kinds[0] != KindCapture {
		t.Errorf("Expected capture error, got %s", kinds[0])
	}
	if stream.Closes() != 1 {
		t.Errorf("Expected stream released once, got %d", stream.Closes())
	}
	if h.service.count() != 0 {
		t.Error("Expected no upload after a failed stop")
	}
	if _, recording, _, visible := h.view.snapshot(); recording || !visible {
		t.Errorf("Expected idle UI, got recording=%v visible=%v", recording, visible)
	}
}

func TestToggleIgnoredWhileAcquiring(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t)
	h.device.Gate = gate

	h.c.Toggle()
	h.c.Toggle()
	close(gate)

	h.waitState(Capturing)
	if h.device.Opens() != 1 {
		t.Errorf("Expected a single acquisition, got %d", h.device.Opens())
	}
	if h.c.State() != Capturing {
		t.Errorf("Expected to remain Capturing, got %s", h.c.State())
	}
}

func TestToggleIgnoredWhileUploading(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t)
	h.service.respond = func(ctx context.Context, _ inference.Upload) (*inference.Response, error) {
		select {
		case <-release:
			return audioResponse([]byte("late")), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.startCapture()
	h.c.Toggle()
	h.waitState(Uploading)

	h.c.Toggle()
	h.c.Toggle()
	time.Sleep(20 * time.Millisecond)

	if h.c.State() != Uploading {
		t.Errorf("Expected to remain Uploading, got %s", h.c.State())
	}
	if h.device.Opens() != 1 {
		t.Errorf("Expected no new acquisition, got %d opens", h.device.Opens())
	}

	close(release)
	h.waitState(Speaking)

	h.c.Toggle()
	time.Sleep(20 * time.Millisecond)
	if h.c.State() != Speaking {
		t.Errorf("Expected to remain Speaking, got %s", h.c.State())
	}

	h.player.Finish(nil)
	h.waitState(Idle)
}

func TestHoldReleaseInIdleAfterIgnoredPress(t *testing.T) {
	h := newHarness(t)

	h.c.Begin()
	h.waitState(Capturing)
	h.c.End()
	h.waitState(Speaking)

	// The keydown lands while speaking and is dropped; its keyup arrives in Idle
	h.c.Begin()
	time.Sleep(20 * time.Millisecond)
	h.player.Finish(nil)
	h.waitState(Idle)
	h.c.End()
	time.Sleep(20 * time.Millisecond)

	if h.c.State() != Idle {
		t.Fatalf("Expected release in Idle to be ignored, got %s", h.c.State())
	}
	if h.device.Opens() != 1 {
		t.Fatalf("Expected no new acquisition, got %d opens", h.device.Opens())
	}

	// The next hold still maps keydown to start and keyup to stop
	h.c.Begin()
	h.waitState(Capturing)
	h.c.End()
	waitFor(t, "second upload", func() bool { return h.service.count() == 2 })
	h.waitState(Speaking)
	h.player.Finish(nil)
	h.waitState(Idle)
}

func TestHoldBeginIgnoredWhileCapturing(t *testing.T) {
	h := newHarness(t)

	h.c.Begin()
	h.waitState(Capturing)
	h.c.Begin()
	time.Sleep(20 * time.Millisecond)

	if h.c.State() != Capturing {
		t.Errorf("Expected to remain Capturing, got %s", h.c.State())
	}
	if h.service.count() != 0 {
		t.Errorf("Expected no upload, got %d", h.service.count())
	}
}

func TestHoldReleaseWhileAcquiring(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t)
	h.device.Gate = gate

	h.c.Begin()
	h.c.End()
	close(gate)

	waitFor(t, "upload after early release", func() bool { return h.service.count() == 1 })
	h.waitState(Speaking)
	if h.device.Opens() != 1 {
		t.Errorf("Expected a single acquisition, got %d", h.device.Opens())
	}
	if stream := h.device.Last(); stream.Closes() != 1 {
		t.Errorf("Expected stream released once, got %d", stream.Closes())
	}
	h.player.Finish(nil)
	h.waitState(Idle)
}

func TestHoldRepressWhileAcquiringKeepsCapturing(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t)
	h.device.Gate = gate

	h.c.Begin()
	h.c.End()
	h.c.Begin()
	close(gate)

	h.waitState(Capturing)
	time.Sleep(20 * time.Millisecond)
	if h.c.State() != Capturing {
		t.Errorf("Expected to remain Capturing, got %s", h.c.State())
	}
}

func TestAutoStop(t *testing.T) {
	h := newHarness(t, func(c *Config, d *Deps) { c.MaxCapture = 30 * time.Millisecond })

	stream := h.startCapture()
	stream.Emit([]byte{7, 7})

	waitFor(t, "auto-stop upload", func() bool { return h.service.count() == 1 })
	h.waitState(Speaking)

	if stream.Closes() != 1 {
		t.Errorf("Expected stream released once, got %d", stream.Closes())
	}
	h.player.Finish(nil)
	h.waitState(Idle)
}

func TestAutoStopDoesNotLeakIntoNextCapture(t *testing.T) {
	h := newHarness(t, func(c *Config, d *Deps) { c.MaxCapture = 80 * time.Millisecond })

	h.startCapture()
	h.c.Toggle()
	h.waitState(Speaking)
	h.player.Finish(nil)
	h.waitState(Idle)

	h.startCapture()
	time.Sleep(40 * time.Millisecond)
	if h.c.State() != Capturing {
		t.Errorf("Expected second capture to run its own timer, got %s", h.c.State())
	}
}

func TestUploadTimeout(t *testing.T) {
	h := newHarness(t, func(c *Config, d *Deps) { c.UploadTimeout = 30 * time.Millisecond })
	h.service.respond = func(ctx context.Context, _ inference.Upload) (*inference.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	h.startCapture()
	h.c.Toggle()
	kinds := h.waitAlerts(1)
	h.backToIdle()

	if kinds[0] != KindTransport {
		t.Errorf("Expected transport error, got %s", kinds[0])
	}
}

func TestTeardownReleasesCapture(t *testing.T) {
	h := newHarness(t)

	stream := h.startCapture()
	h.stop()

	if stream.Closes() != 1 {
		t.Errorf("Expected stream released once, got %d", stream.Closes())
	}
	if state, recording, _, visible := h.view.snapshot(); state != Idle || recording || !visible {
		t.Errorf("Expected idle UI after teardown, got state=%s recording=%v visible=%v", state, recording, visible)
	}
}

func TestTeardownStopsPlayback(t *testing.T) {
	h := newHarness(t)

	h.startCapture()
	h.c.Toggle()
	h.waitState(Speaking)

	h.stop()

	if state, _, speaking, visible := h.view.snapshot(); state != Idle || speaking || !visible {
		t.Errorf("Expected idle UI after teardown, got state=%s speaking=%v visible=%v", state, speaking, visible)
	}
	if kinds := h.notifier.kinds(); len(kinds) != 0 {
		t.Errorf("Expected no alerts on teardown, got %v", kinds)
	}
}

func TestTeardownDuringAcquisition(t *testing.T) {
	h := newHarness(t)
	h.device.Gate = make(chan struct{})

	h.c.Toggle()
	waitFor(t, "acquisition start", func() bool { return h.device.Opens() == 1 })
	h.stop()

	if h.device.Last() != nil {
		t.Error("No stream should have been opened")
	}
	if kinds := h.notifier.kinds(); len(kinds) != 0 {
		t.Errorf("Expected no alerts on teardown, got %v", kinds)
	}
}

func TestRunOnlyOnce(t *testing.T) {
	c := New(DefaultConfig(), Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("First Run failed: %v", err)
	}
	if err := c.Run(ctx); err == nil {
		t.Error("Expected second Run to fail")
	}
}

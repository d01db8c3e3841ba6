package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MoiraAI2024/widget/internal/capture"
	"github.com/MoiraAI2024/widget/internal/inference"
	"github.com/MoiraAI2024/widget/internal/playback"
	"github.com/MoiraAI2024/widget/internal/session"
)

// View reflects controller state in the user interface.
// All calls are made from the controller's event loop.
type View interface {
	SetRecording(on bool)
	SetSpeaking(on bool)
	SetControlVisible(visible bool)
	SetState(state State)
}

// Notifier surfaces errors to the user
type Notifier interface {
	Alert(kind ErrorKind, err error)
}

// Config holds configuration for the controller
type Config struct {
	Endpoint      string // checked once for the network capability
	QuestionText  string
	MaxCapture    time.Duration // auto-stop, 0 = until toggled
	UploadTimeout time.Duration // 0 = wait for the response indefinitely
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxCapture:    60 * time.Second,
		UploadTimeout: 60 * time.Second,
	}
}

// Deps are the collaborators the controller drives
type Deps struct {
	Device   capture.Device
	Service  inference.Service
	Player   playback.Player
	View     View
	Notifier Notifier
	Logger   *zap.Logger

	// MicrophoneDenied reports a known permission refusal; optional
	MicrophoneDenied func() bool
}

type eventKind int

const (
	evToggle eventKind = iota
	evAcquired
	evStopped
	evResponse
	evPlayed
)

// intent narrows what a user trigger may do
type intent int

const (
	intentToggle intent = iota
	intentBegin         // start only from Idle
	intentEnd           // stop only a running capture
)

type event struct {
	kind      eventKind
	intent    intent
	gen       uint64 // capture generation for auto-stop, 0 for the user
	session   *capture.Session
	recording *capture.Recording
	response  *inference.Response
	err       error
}

// Controller sequences capture, upload and playback for one session
type Controller struct {
	config    Config
	deps      Deps
	logger    *zap.Logger
	sessionID string
	caps      Capabilities

	events  chan event
	done    chan struct{}
	started sync.Once
	wg      sync.WaitGroup

	mu    sync.RWMutex
	state State

	// owned by the event loop
	ctx       context.Context
	acquiring bool
	endQueued bool // an End arrived while the microphone was being acquired
	stopping  bool
	capture   *capture.Session
	gen       uint64
	stopTimer *time.Timer
}

// New creates a controller in Idle with a fresh session identity
func New(config Config, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.View == nil {
		deps.View = nopView{}
	}

	c := &Controller{
		config:    config,
		deps:      deps,
		sessionID: session.NewID(),
		events:    make(chan event, 16),
		done:      make(chan struct{}),
		state:     Idle,
	}
	c.logger = logger.With(zap.String("sessionID", c.sessionID))
	c.caps = evaluateCapabilities(config, deps)

	c.logger.Info("Controller ready",
		zap.Bool("captureCapable", c.caps.Capture),
		zap.Bool("networkCapable", c.caps.Network))

	return c
}

func evaluateCapabilities(config Config, deps Deps) Capabilities {
	return Capabilities{
		Capture: deps.Device != nil,
		Network: deps.Service != nil && isHTTPURL(config.Endpoint),
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SessionID returns the identity sent with every upload
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Capabilities returns the capability check made at construction
func (c *Controller) Capabilities() Capabilities {
	return c.caps
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Toggle is the user trigger: it starts a capture from Idle and stops a
// running one. It never blocks; triggers that arrive while the event queue
// is full are dropped.
func (c *Controller) Toggle() {
	c.trigger(intentToggle)
}

// Begin starts a capture if the controller is Idle and does nothing
// otherwise. Press-to-hold keydown maps here.
func (c *Controller) Begin() {
	c.trigger(intentBegin)
}

// End stops a running capture and does nothing otherwise. An End that
// arrives while the microphone is still being acquired stops the capture as
// soon as it starts. Press-to-hold keyup maps here.
func (c *Controller) End() {
	c.trigger(intentEnd)
}

func (c *Controller) trigger(in intent) {
	select {
	case c.events <- event{kind: evToggle, intent: in}:
	case <-c.done:
	default:
		c.logger.Warn("Trigger dropped, event queue full")
	}
}

// Run processes events until ctx is done, then releases any open capture
// session and stops playback. Run may only be called once.
func (c *Controller) Run(ctx context.Context) error {
	first := false
	c.started.Do(func() { first = true })
	if !first {
		return fmt.Errorf("controller already running")
	}

	c.ctx = ctx
	c.deps.View.SetState(Idle)
	c.deps.View.SetControlVisible(true)

	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-ctx.Done():
			c.teardown()
			return nil
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evToggle:
		c.onToggle(ev)
	case evAcquired:
		c.onAcquired(ev)
	case evStopped:
		c.onStopped(ev)
	case evResponse:
		c.onResponse(ev)
	case evPlayed:
		c.onPlayed(ev)
	}
}

func (c *Controller) onToggle(ev event) {
	switch c.State() {
	case Idle:
		if ev.gen != 0 {
			return
		}
		if c.acquiring {
			switch ev.intent {
			case intentEnd:
				c.endQueued = true
			case intentBegin:
				c.endQueued = false
			}
			return
		}
		if ev.intent == intentEnd {
			return
		}
		if err := c.caps.Err(); err != nil {
			c.fail(KindCapability, err)
			return
		}
		if c.deps.MicrophoneDenied != nil && c.deps.MicrophoneDenied() {
			c.fail(KindPermission, capture.ErrPermissionDenied)
			return
		}
		c.startCapture()

	case Capturing:
		if ev.intent == intentBegin || c.stopping || (ev.gen != 0 && ev.gen != c.gen) {
			return
		}
		if ev.gen != 0 {
			c.logger.Info("Maximum capture time reached, stopping")
		}
		c.stopCapture()

	default:
		c.logger.Debug("Toggle ignored", zap.Stringer("state", c.State()))
	}
}

// startCapture asks the device for a stream; the permission prompt may
// take arbitrarily long, so the loop keeps running meanwhile
func (c *Controller) startCapture() {
	c.acquiring = true
	c.endQueued = false
	c.logger.Debug("Acquiring microphone")

	c.spawn(func() {
		s, err := capture.Begin(c.ctx, c.deps.Device)
		if !c.post(event{kind: evAcquired, session: s, err: err}) && s != nil {
			s.Release()
		}
	})
}

func (c *Controller) onAcquired(ev event) {
	c.acquiring = false
	endQueued := c.endQueued
	c.endQueued = false

	if ev.err != nil {
		if c.ctx.Err() != nil {
			return
		}
		kind := KindPermission
		if errors.Is(ev.err, capture.ErrUnavailable) {
			kind = KindCapability
		}
		c.fail(kind, fmt.Errorf("failed to acquire microphone: %w", ev.err))
		return
	}

	c.capture = ev.session
	c.gen++
	c.setState(Capturing)
	c.deps.View.SetRecording(true)

	if c.config.MaxCapture > 0 {
		gen := c.gen
		c.stopTimer = time.AfterFunc(c.config.MaxCapture, func() {
			c.post(event{kind: evToggle, gen: gen})
		})
	}

	if endQueued {
		c.logger.Debug("Released before the microphone opened, stopping")
		c.stopCapture()
	}
}

func (c *Controller) stopCapture() {
	c.stopping = true
	c.cancelStopTimer()
	c.deps.View.SetRecording(false)

	s := c.capture
	c.spawn(func() {
		rec, err := s.Finish()
		c.post(event{kind: evStopped, recording: rec, err: err})
	})
}

func (c *Controller) onStopped(ev event) {
	c.stopping = false
	c.capture = nil

	if ev.err != nil {
		c.fail(KindCapture, ev.err)
		c.toIdle()
		return
	}

	rec := ev.recording
	c.logger.Info("Capture finished",
		zap.Int("chunks", len(rec.Chunks)),
		zap.Duration("duration", rec.Duration()))

	upload := inference.Upload{
		Audio:        rec.WAV(),
		Filename:     rec.Filename(),
		ContentType:  rec.ContentType(),
		SessionID:    c.sessionID,
		QuestionText: c.config.QuestionText,
	}

	c.deps.View.SetControlVisible(false)
	c.setState(Uploading)

	c.spawn(func() {
		ctx := c.ctx
		if c.config.UploadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.UploadTimeout)
			defer cancel()
		}
		resp, err := c.deps.Service.Infer(ctx, upload)
		c.post(event{kind: evResponse, response: resp, err: err})
	})
}

func (c *Controller) onResponse(ev event) {
	if ev.err != nil {
		c.fail(KindTransport, ev.err)
		c.toIdle()
		return
	}

	if !ev.response.HasAudio() {
		c.fail(KindSoftContent, inference.ErrNoAudio)
		c.toIdle()
		return
	}

	audio, err := ev.response.DecodeAudio()
	if err == nil && c.deps.Player == nil {
		err = fmt.Errorf("no audio output available")
	}
	if err != nil {
		c.fail(KindPlayback, err)
		c.toIdle()
		return
	}

	c.setState(Speaking)
	c.deps.View.SetSpeaking(true)

	c.spawn(func() {
		err := c.deps.Player.Play(c.ctx, audio)
		c.post(event{kind: evPlayed, err: err})
	})
}

func (c *Controller) onPlayed(ev event) {
	c.deps.View.SetSpeaking(false)
	if ev.err != nil {
		c.fail(KindPlayback, ev.err)
	}
	c.toIdle()
}

func (c *Controller) toIdle() {
	c.setState(Idle)
	c.deps.View.SetControlVisible(true)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.logger.Debug("State changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
	c.deps.View.SetState(s)
}

// fail classifies err and reports it; soft content failures are only logged
func (c *Controller) fail(kind ErrorKind, err error) {
	e := &Error{Kind: kind, Err: err}

	if kind == KindSoftContent {
		c.logger.Warn("Response did not contain audio data")
		return
	}

	c.logger.Error("Interaction failed", zap.Stringer("kind", kind), zap.Error(err))
	if c.deps.Notifier != nil {
		c.deps.Notifier.Alert(kind, e)
	}
}

func (c *Controller) cancelStopTimer() {
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
}

// spawn runs an async phase; Run waits for all of them during teardown
func (c *Controller) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// post delivers a completion to the loop. It reports false once the loop
// has exited.
func (c *Controller) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) teardown() {
	close(c.done)
	c.cancelStopTimer()

	if c.capture != nil && !c.stopping {
		if err := c.capture.Release(); err != nil {
			c.logger.Warn("Failed to release capture session", zap.Error(err))
		}
	}
	c.capture = nil

	// Phases observe the cancelled ctx; wait for them so nothing outlives Run
	c.wg.Wait()

	// Sessions acquired while shutting down may still sit in the queue
drain:
	for {
		select {
		case ev := <-c.events:
			if ev.kind == evAcquired && ev.session != nil {
				ev.session.Release()
			}
		default:
			break drain
		}
	}

	c.acquiring = false
	c.endQueued = false
	c.stopping = false
	c.deps.View.SetRecording(false)
	c.deps.View.SetSpeaking(false)
	c.setState(Idle)
	c.deps.View.SetControlVisible(true)

	c.logger.Info("Controller stopped")
}

type nopView struct{}

func (nopView) SetRecording(bool)      {}
func (nopView) SetSpeaking(bool)       {}
func (nopView) SetControlVisible(bool) {}
func (nopView) SetState(State)         {}

package hotkey

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"

	"github.com/MoiraAI2024/widget/internal/config"
)

// RecordingMode defines how the hotkey maps onto talk triggers
type RecordingMode int

const (
	// PressToHold mode: talk while the key is held down
	PressToHold RecordingMode = iota
	// Toggle mode: first press starts, second press stops
	Toggle
)

// ParseMode converts the config string into a RecordingMode
func ParseMode(s string) (RecordingMode, error) {
	switch s {
	case "toggle":
		return Toggle, nil
	case "press-to-hold":
		return PressToHold, nil
	default:
		return Toggle, fmt.Errorf("unknown recording mode %q", s)
	}
}

// EventType represents the type of hotkey event
type EventType int

const (
	// Pressed indicates the hotkey was pressed
	Pressed EventType = iota
	// Released indicates the hotkey was released
	Released
)

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Config holds hotkey configuration
type Config struct {
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
	Mode      RecordingMode
}

// Action is what a key transition asks of the talk control
type Action int

const (
	// NoAction means the transition is ignored in this mode
	NoAction Action = iota
	// ToggleAction starts a capture when idle and stops a running one
	ToggleAction
	// BeginAction starts a capture only when idle
	BeginAction
	// EndAction stops a running capture only
	EndAction
)

// ActionFor maps a key transition to an Action. Toggle acts on keydown
// only. PressToHold begins on keydown and ends on keyup, so a keydown that
// was ignored can never turn the matching keyup into a start.
func (c Config) ActionFor(ev EventType) Action {
	if c.Mode == PressToHold {
		if ev == Pressed {
			return BeginAction
		}
		return EndAction
	}
	if ev == Pressed {
		return ToggleAction
	}
	return NoAction
}

// Controls is the talk control driven by the hotkey
type Controls interface {
	Toggle()
	Begin()
	End()
}

// ConfigFrom builds a Config from the persisted settings
func ConfigFrom(hk config.HotkeyConfig, mode string) (Config, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Config{}, err
	}

	key, err := ParseKey(hk.Key)
	if err != nil {
		return Config{}, err
	}

	var mods []hotkey.Modifier
	if hk.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if hk.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if hk.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if hk.Cmd {
		mods = append(mods, hotkey.ModCmd)
	}
	if len(mods) == 0 {
		return Config{}, fmt.Errorf("hotkey needs at least one modifier")
	}

	return Config{Modifiers: mods, Key: key, Mode: m}, nil
}

// Manager manages global hotkey registration and events
type Manager struct {
	hk        *hotkey.Hotkey
	config    Config
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a new hotkey manager with default configuration
// Default: Ctrl+Option+M, toggle
func New() *Manager {
	return &Manager{
		config: Config{
			Modifiers: []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
			Key:       hotkey.KeyM,
			Mode:      Toggle,
		},
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the hotkey with the system
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already running, call Close() first")
	}

	m.config = config

	// Channels may have been closed by a previous Close()
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	hk := hotkey.New(m.config.Modifiers, m.config.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", FormatHotkey(config.Modifiers, config.Key), err)
	}

	m.hk = hk
	m.running = true

	m.wg.Add(1)
	go m.listen(hk, m.eventChan, m.stopChan)

	return nil
}

// RegisterDefault registers the default hotkey
func (m *Manager) RegisterDefault() error {
	return m.Register(m.GetConfig())
}

// listen forwards raw key transitions; ActionFor decides what they mean
func (m *Manager) listen(hk *hotkey.Hotkey, events chan<- Event, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		var ev Event
		select {
		case <-hk.Keydown():
			ev = Event{Type: Pressed}
		case <-hk.Keyup():
			ev = Event{Type: Released}
		case <-stop:
			return
		}

		select {
		case events <- ev:
		default:
			// Consumer is behind; a dropped key event is a dropped press
		}
	}
}

// Events returns the event channel for receiving hotkey events
func (m *Manager) Events() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventChan
}

// Forward drives ctl with every key transition until ctx is done or the
// manager is closed
func (m *Manager) Forward(ctx context.Context, ctl Controls) {
	events := m.Events()
	cfg := m.GetConfig()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch cfg.ActionFor(ev.Type) {
			case ToggleAction:
				ctl.Toggle()
			case BeginAction:
				ctl.Begin()
			case EndAction:
				ctl.End()
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close unregisters the hotkey and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	// Keep going on error so the next Register can succeed
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
	}

	close(m.eventChan)
	m.running = false

	return unregisterErr
}

// IsRunning returns whether the hotkey is currently registered and running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns a deep copy of the current hotkey configuration
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := m.config
	if m.config.Modifiers != nil {
		configCopy.Modifiers = make([]hotkey.Modifier, len(m.config.Modifiers))
		copy(configCopy.Modifiers, m.config.Modifiers)
	}

	return configCopy
}

// ParseKey converts a key name such as "M", "7" or "Space"
func ParseKey(name string) (hotkey.Key, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "ESCAPE":
		n = "ESC"
	case "ENTER":
		n = "RETURN"
	}
	for key, display := range keyNames {
		if strings.ToUpper(display) == n {
			return key, nil
		}
	}
	return 0, fmt.Errorf("unsupported hotkey key %q", name)
}

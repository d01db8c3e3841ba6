package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/MoiraAI2024/widget/internal/controller"
	"github.com/MoiraAI2024/widget/internal/i18n"
)

const appTitle = "Moira"

// Manager owns the menu-bar icon and menu. It implements controller.View:
// the icon follows the interaction state and the "Talk" item is the
// interactive control.
type Manager struct {
	mu             sync.RWMutex
	state          controller.State
	recording      bool
	speaking       bool
	controlVisible bool
	ready          bool

	translator *i18n.Translator
	logger     *zap.Logger

	onReadyCallback func()
	onTalk          func()
	onCopySessionID func()
	onSettings      func()
	onDeviceChange  func(deviceID int)
	onQuit          func()

	menuTalk          *systray.MenuItem
	menuCopySession   *systray.MenuItem
	menuSettings      *systray.MenuItem
	menuDevices       *systray.MenuItem
	menuQuit          *systray.MenuItem
	deviceMenuItems   []*systray.MenuItem
	deviceCancelFuncs []context.CancelFunc

	// Icon cache
	iconIdle      []byte
	iconCapturing []byte
	iconUploading []byte
	iconSpeaking  []byte
}

var _ controller.View = (*Manager)(nil)

// Config holds tray manager configuration
type Config struct {
	Translator      *i18n.Translator
	Logger          *zap.Logger
	OnReady         func() // called once systray is ready
	OnTalk          func()
	OnCopySessionID func()
	OnSettings      func()
	OnDeviceChange  func(deviceID int)
	OnQuit          func()
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	if config.Translator == nil {
		config.Translator = i18n.NewDefaultTranslator(i18n.LanguageEnglish)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	m := &Manager{
		state:           controller.Idle,
		controlVisible:  true,
		translator:      config.Translator,
		logger:          config.Logger,
		onReadyCallback: config.OnReady,
		onTalk:          config.OnTalk,
		onCopySessionID: config.OnCopySessionID,
		onSettings:      config.OnSettings,
		onDeviceChange:  config.OnDeviceChange,
		onQuit:          config.OnQuit,
	}

	m.iconIdle = loadIconData(m.logger, "moira_idle.png", getIdleFallback())
	m.iconCapturing = loadIconData(m.logger, "moira_listening.png", getRecordingFallback())
	m.iconUploading = loadIconData(m.logger, "moira_thinking.png", getProcessingFallback())
	m.iconSpeaking = loadIconData(m.logger, "moira_speaking.png", getRecordingFallback())

	return m
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

func (m *Manager) onReady() {
	t := m.translator

	m.menuTalk = systray.AddMenuItem(t.Translate("menu.talk"), "")
	m.menuCopySession = systray.AddMenuItem(t.Translate("menu.copy_session_id"), "")
	systray.AddSeparator()
	m.menuSettings = systray.AddMenuItem(t.Translate("menu.settings"), "")
	m.menuDevices = systray.AddMenuItem(t.Translate("settings.audio_device"), "")
	systray.AddSeparator()
	m.menuQuit = systray.AddMenuItem(t.Translate("menu.quit"), "")

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	m.refresh()

	go m.handleMenuEvents()

	if m.onReadyCallback != nil {
		m.onReadyCallback()
	}
}

func (m *Manager) onExit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cancel := range m.deviceCancelFuncs {
		cancel()
	}
	m.deviceCancelFuncs = nil
}

func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuTalk.ClickedCh:
			if m.onTalk != nil {
				m.onTalk()
			}
		case <-m.menuCopySession.ClickedCh:
			if m.onCopySessionID != nil {
				m.onCopySessionID()
			}
		case <-m.menuSettings.ClickedCh:
			if m.onSettings != nil {
				m.onSettings()
			}
		case <-m.menuQuit.ClickedCh:
			if m.onQuit != nil {
				m.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

// SetState updates the icon and tooltip
func (m *Manager) SetState(state controller.State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.refresh()
}

// SetRecording switches the talk item between start and stop labels
func (m *Manager) SetRecording(on bool) {
	m.mu.Lock()
	m.recording = on
	m.mu.Unlock()
	m.refresh()
}

// SetSpeaking marks the response as playing
func (m *Manager) SetSpeaking(on bool) {
	m.mu.Lock()
	m.speaking = on
	m.mu.Unlock()
	m.refresh()
}

// SetControlVisible shows or hides the talk item
func (m *Manager) SetControlVisible(visible bool) {
	m.mu.Lock()
	m.controlVisible = visible
	m.mu.Unlock()
	m.refresh()
}

// refresh pushes the current view state to systray once it is running
func (m *Manager) refresh() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready {
		return
	}

	systray.SetIcon(m.icon())
	systray.SetTooltip(m.tooltip())

	m.menuTalk.SetTitle(m.talkLabel())
	if m.controlVisible {
		m.menuTalk.Show()
	} else {
		m.menuTalk.Hide()
	}
}

// icon picks the icon; callers hold mu
func (m *Manager) icon() []byte {
	switch {
	case m.speaking:
		return m.iconSpeaking
	case m.recording:
		return m.iconCapturing
	case m.state == controller.Uploading:
		return m.iconUploading
	default:
		return m.iconIdle
	}
}

// tooltip returns "Moira - <status>"; callers hold mu
func (m *Manager) tooltip() string {
	key := "status.idle"
	switch m.state {
	case controller.Capturing:
		key = "status.capturing"
	case controller.Uploading:
		key = "status.uploading"
	case controller.Speaking:
		key = "status.speaking"
	}
	return appTitle + " - " + m.translator.Translate(key)
}

// talkLabel; callers hold mu
func (m *Manager) talkLabel() string {
	if m.recording {
		return m.translator.Translate("menu.stop")
	}
	return m.translator.Translate("menu.talk")
}

// Device represents an audio device for the menu
type Device struct {
	ID        int
	Name      string
	IsDefault bool
	IsCurrent bool
}

// UpdateDeviceMenu rebuilds the input device submenu
func (m *Manager) UpdateDeviceMenu(devices []Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready || m.menuDevices == nil {
		return
	}

	for _, cancel := range m.deviceCancelFuncs {
		cancel()
	}
	m.deviceCancelFuncs = nil

	for _, item := range m.deviceMenuItems {
		item.Hide()
	}
	m.deviceMenuItems = nil

	for _, device := range devices {
		prefix := ""
		if device.IsCurrent {
			prefix = "✓ "
		}
		tooltip := ""
		if device.IsDefault {
			tooltip = "System default device"
		}

		item := m.menuDevices.AddSubMenuItem(prefix+device.Name, tooltip)
		m.deviceMenuItems = append(m.deviceMenuItems, item)

		ctx, cancel := context.WithCancel(context.Background())
		m.deviceCancelFuncs = append(m.deviceCancelFuncs, cancel)

		go func(id int, item *systray.MenuItem) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-item.ClickedCh:
					if m.onDeviceChange != nil {
						m.onDeviceChange(id)
					}
				}
			}
		}(device.ID, item)
	}
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

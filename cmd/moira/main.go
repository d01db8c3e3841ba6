package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/MoiraAI2024/widget/internal/api"
	"github.com/MoiraAI2024/widget/internal/audio"
	"github.com/MoiraAI2024/widget/internal/capture"
	"github.com/MoiraAI2024/widget/internal/clipboard"
	"github.com/MoiraAI2024/widget/internal/config"
	"github.com/MoiraAI2024/widget/internal/controller"
	"github.com/MoiraAI2024/widget/internal/hotkey"
	"github.com/MoiraAI2024/widget/internal/i18n"
	"github.com/MoiraAI2024/widget/internal/inference"
	"github.com/MoiraAI2024/widget/internal/logger"
	"github.com/MoiraAI2024/widget/internal/notification"
	"github.com/MoiraAI2024/widget/internal/permissions"
	"github.com/MoiraAI2024/widget/internal/playback"
	"github.com/MoiraAI2024/widget/internal/server"
	"github.com/MoiraAI2024/widget/internal/tray"
)

const (
	version = "0.1.0"
	appName = "Moira"
)

// App holds all application state
type App struct {
	logger     *logger.Logger
	zl         *zap.Logger
	config     *config.Config
	configPath string

	translator  *i18n.Translator
	notifier    *notification.NotificationManager
	permChecker *permissions.PermissionChecker
	clipboard   *clipboard.Manager
	audioDriver *audio.PortAudioDriver
	ctrl        *controller.Controller
	trayMgr     *tray.Manager
	hotkeyMgr   *hotkey.Manager
	httpServer  *server.Server

	ctx         context.Context
	cancel      context.CancelFunc
	ctrlDone    chan struct{}
	ctrlStarted atomic.Bool
	hotkeyMu    sync.Mutex
	quitOnce    sync.Once
}

func init() {
	// systray and the Cocoa hotkey hooks need the main thread
	runtime.LockOSThread()
}

func main() {
	app := &App{ctrlDone: make(chan struct{})}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	var err error
	app.logger, err = logger.New(logger.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer app.logger.Close()
	app.zl = app.logger.Zap()

	if err := app.loadConfig(); err != nil {
		app.logger.Error("Failed to load configuration: %v", err)
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app.logger.Info("Moira v%s starting (client_id=%q)", version, app.config.ClientID)

	app.setupTranslator()
	app.notifier = notification.NewNotificationManager(appName, app.translator, app.zl.Named("notification"))
	app.permChecker = permissions.NewPermissionChecker()
	app.clipboard = clipboard.NewManager()

	app.trayMgr = tray.NewManager(tray.Config{
		Translator:      app.translator,
		Logger:          app.zl.Named("tray"),
		OnReady:         app.onReady,
		OnTalk:          app.handleTalk,
		OnCopySessionID: app.handleCopySessionID,
		OnSettings:      app.handleOpenSettings,
		OnDeviceChange:  app.handleDeviceChange,
		OnQuit:          app.shutdown,
	})

	app.ctrl = controller.New(app.controllerConfig(), controller.Deps{
		Device:           app.setupCaptureDevice(),
		Service:          app.setupInference(),
		Player:           playback.NewMP3Player(),
		View:             app.trayMgr,
		Notifier:         app.notifier,
		Logger:           app.zl.Named("controller"),
		MicrophoneDenied: app.permChecker.MicrophoneDenied,
	})

	app.httpServer = server.New(server.DefaultConfig(), app.zl.Named("server"))
	apiHandler := api.New(api.Options{
		Config:            app.config,
		ConfigPath:        app.configPath,
		Controller:        app.ctrl,
		Devices:           app.deviceLister(),
		Permissions:       app.permChecker,
		Logger:            app.zl.Named("api"),
		OnSettingsChanged: app.applySettings,
	})
	app.httpServer.Mount("/api", apiHandler.Routes())

	app.logger.Info("Starting system tray")

	// Blocks until systray.Quit
	app.trayMgr.Run()

	app.shutdown()
	app.logger.Info("Moira stopped")
}

// loadConfig reads .env, the config file and MOIRA_* overrides
func (a *App) loadConfig() error {
	a.configPath = config.GetConfigPath()

	if err := config.LoadDotEnv(".env", filepath.Join(filepath.Dir(a.configPath), ".env")); err != nil {
		return err
	}

	_, statErr := os.Stat(a.configPath)
	firstRun := errors.Is(statErr, os.ErrNotExist)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if firstRun {
		cfg.UILanguage = string(i18n.DetectSystemLanguage())
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.config = cfg

	if level, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		a.logger.Warn("Ignoring log level: %v", err)
	} else {
		a.logger.SetLevel(level)
	}

	if firstRun {
		if err := cfg.Save(a.configPath); err != nil {
			a.logger.Warn("Failed to write initial config: %v", err)
		}
	}

	a.logger.Info("Configuration loaded from %s", a.configPath)
	return nil
}

func (a *App) controllerConfig() controller.Config {
	return controller.Config{
		Endpoint:      a.config.Endpoint,
		QuestionText:  a.config.QuestionText,
		MaxCapture:    a.config.MaxRecordDuration(),
		UploadTimeout: a.config.UploadTimeoutDuration(),
	}
}

// setupTranslator loads built-in strings plus optional overrides from
// <config dir>/i18n/<lang>.json
func (a *App) setupTranslator() {
	lang := i18n.Language(a.config.UILanguage)
	a.translator = i18n.NewDefaultTranslator(lang)

	override := filepath.Join(filepath.Dir(a.configPath), "i18n", string(lang)+".json")
	if _, err := os.Stat(override); err != nil {
		return
	}
	if err := a.translator.LoadTranslationsFromFile(lang, override); err != nil {
		a.logger.Warn("Failed to load translation overrides: %v", err)
		return
	}
	a.logger.Info("Loaded translation overrides from %s", override)
}

// setupCaptureDevice returns nil when no microphone can be used, which
// leaves the controller without the capture capability
func (a *App) setupCaptureDevice() capture.Device {
	driver, err := audio.NewPortAudioDriver()
	if err != nil {
		a.logger.Error("Failed to create PortAudio driver: %v", err)
		return nil
	}
	a.audioDriver = driver

	cfg := audio.DefaultConfig()
	cfg.DeviceID = a.config.AudioDeviceID
	if err := driver.Initialize(cfg); err != nil {
		a.logger.Error("Failed to initialize audio input: %v", err)
		return nil
	}

	if !driver.Available() {
		a.logger.Error("No audio input device selected")
		return nil
	}

	a.logger.Info("Audio input ready (device %d)", cfg.DeviceID)
	return &permissionGatedDevice{
		Device:    driver,
		denied:    a.permChecker.MicrophoneDenied,
		available: driver.Available,
	}
}

func (a *App) deviceLister() api.DeviceLister {
	if a.audioDriver == nil {
		return nil
	}
	return a.audioDriver
}

// setupInference returns nil when the endpoint is unusable
func (a *App) setupInference() inference.Service {
	client, err := inference.NewClient(inference.Config{
		Endpoint: a.config.Endpoint,
		Headers:  a.config.ExtraHeaders,
	}, a.zl.Named("inference"))
	if err != nil {
		a.logger.Error("Failed to create inference client: %v", err)
		return nil
	}
	return client
}

// onReady is called once systray is initialized
func (a *App) onReady() {
	a.logger.Info("System tray ready")

	a.ctrlStarted.Store(true)
	go func() {
		defer close(a.ctrlDone)
		if err := a.ctrl.Run(a.ctx); err != nil {
			a.logger.Error("Controller stopped: %v", err)
		}
	}()

	if a.permChecker.MicrophoneDenied() {
		a.logger.Warn("Microphone permission denied; talking is disabled")
		a.notifier.Alert(controller.KindPermission, capture.ErrPermissionDenied)
	}

	a.refreshDeviceMenu()

	hkCfg, err := hotkey.ConfigFrom(a.config.Hotkey, a.config.RecordingMode)
	if err != nil {
		a.logger.Warn("Invalid hotkey settings, using default: %v", err)
		hkCfg = hotkey.New().GetConfig()
	}
	if err := a.registerHotkey(hkCfg); err != nil {
		a.logger.Error("Failed to register hotkey: %v", err)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("Failed to start control API: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			a.logger.Info("Received termination signal")
			a.shutdown()
			a.trayMgr.Quit()
		case <-a.ctx.Done():
		}
	}()

	a.logger.Info("Moira ready: control API at %s, session %s", a.httpServer.URL(), a.ctrl.SessionID())
}

// registerHotkey replaces the active hotkey and forwards its presses to
// the controller
func (a *App) registerHotkey(cfg hotkey.Config) error {
	a.hotkeyMu.Lock()
	defer a.hotkeyMu.Unlock()

	for _, c := range hotkey.CheckConflicts(cfg.Modifiers, cfg.Key) {
		a.logger.Warn("Hotkey %s conflicts with %s: %s",
			hotkey.FormatHotkey(cfg.Modifiers, cfg.Key), c.Name, c.Description)
	}

	if a.hotkeyMgr != nil {
		if err := a.hotkeyMgr.Close(); err != nil {
			a.logger.Warn("Failed to release previous hotkey: %v", err)
		}
	}

	mgr := hotkey.New()
	if err := mgr.Register(cfg); err != nil {
		return err
	}
	a.hotkeyMgr = mgr
	go mgr.Forward(a.ctx, a.ctrl)

	a.logger.Info("Hotkey registered: %s", hotkey.FormatHotkey(cfg.Modifiers, cfg.Key))
	return nil
}

// applySettings applies settings saved through the control API
func (a *App) applySettings(cfg *config.Config) error {
	if i18n.ValidateLanguage(cfg.UILanguage) {
		a.translator.SetLanguage(i18n.Language(cfg.UILanguage))
	}
	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		a.logger.SetLevel(level)
	}

	hkCfg, err := hotkey.ConfigFrom(cfg.Hotkey, cfg.RecordingMode)
	if err != nil {
		return err
	}
	if err := a.registerHotkey(hkCfg); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	// The controller keeps the endpoint and limits it was created with
	running := a.controllerConfig()
	if cfg.Endpoint != running.Endpoint ||
		cfg.QuestionText != running.QuestionText ||
		cfg.MaxRecordDuration() != running.MaxCapture ||
		cfg.UploadTimeoutDuration() != running.UploadTimeout {
		return errors.New("endpoint, question text and time limits apply after restart")
	}
	return nil
}

func (a *App) handleTalk() {
	a.ctrl.Toggle()
}

func (a *App) handleCopySessionID() {
	if err := a.clipboard.Copy(a.ctrl.SessionID()); err != nil {
		a.logger.Error("Failed to copy session ID: %v", err)
		return
	}
	if err := a.notifier.SessionCopied(); err != nil {
		a.logger.Warn("Failed to show notification: %v", err)
	}
}

// handleOpenSettings opens config.json in the default text editor
func (a *App) handleOpenSettings() {
	if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) {
		if err := a.config.Save(a.configPath); err != nil {
			a.logger.Error("Failed to write config: %v", err)
			return
		}
	}

	go func() {
		if err := exec.Command("open", "-t", a.configPath).Run(); err != nil {
			a.logger.Error("Failed to open settings: %v", err)
		}
	}()
}

func (a *App) handleDeviceChange(deviceID int) {
	if a.audioDriver == nil {
		return
	}

	cfg := audio.DefaultConfig()
	cfg.DeviceID = deviceID
	if err := a.audioDriver.Initialize(cfg); err != nil {
		a.logger.Error("Failed to switch input device: %v", err)
		a.notifier.Alert(controller.KindCapture, err)
		return
	}

	if err := a.config.Update(map[string]interface{}{"audio_device_id": float64(deviceID)}); err != nil {
		a.logger.Error("Failed to update config: %v", err)
		return
	}
	if err := a.config.Save(a.configPath); err != nil {
		a.logger.Error("Failed to save config: %v", err)
	}

	a.logger.Info("Input device switched to %d", deviceID)
	a.refreshDeviceMenu()
}

func (a *App) refreshDeviceMenu() {
	if a.audioDriver == nil {
		return
	}
	devices, err := a.audioDriver.ListDevices()
	if err != nil {
		a.logger.Warn("Failed to list audio devices: %v", err)
		return
	}
	a.trayMgr.UpdateDeviceMenu(trayDevices(devices, a.config.Clone().AudioDeviceID))
}

// shutdown stops the controller and releases everything it used
func (a *App) shutdown() {
	a.quitOnce.Do(func() {
		a.logger.Info("Shutting down")
		a.cancel()

		// Run releases any open capture and stops playback before returning
		if a.ctrlStarted.Load() {
			<-a.ctrlDone
		}

		a.hotkeyMu.Lock()
		if a.hotkeyMgr != nil {
			if err := a.hotkeyMgr.Close(); err != nil {
				a.logger.Warn("Failed to release hotkey: %v", err)
			}
		}
		a.hotkeyMu.Unlock()

		if err := a.httpServer.Stop(); err != nil {
			a.logger.Warn("Failed to stop control API: %v", err)
		}
		if a.audioDriver != nil {
			if err := a.audioDriver.Close(); err != nil {
				a.logger.Warn("Failed to close audio driver: %v", err)
			}
		}
	})
}

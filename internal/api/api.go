package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MoiraAI2024/widget/internal/audio"
	"github.com/MoiraAI2024/widget/internal/config"
	"github.com/MoiraAI2024/widget/internal/controller"
	"github.com/MoiraAI2024/widget/internal/hotkey"
	"github.com/MoiraAI2024/widget/internal/permissions"
)

// Controller is the part of the interaction controller the API exposes
type Controller interface {
	State() controller.State
	SessionID() string
	Capabilities() controller.Capabilities
	Toggle()
}

// DeviceLister enumerates audio input devices
type DeviceLister interface {
	ListDevices() ([]audio.Device, error)
}

// PermissionSource reports system permission state
type PermissionSource interface {
	CheckAllPermissions() map[string]permissions.PermissionStatus
}

// Handler manages API endpoints
type Handler struct {
	config     *config.Config
	configPath string
	controller Controller
	devices    DeviceLister
	perms      PermissionSource
	logger     *zap.Logger

	// onSettingsChanged receives a snapshot after a successful save
	onSettingsChanged func(*config.Config) error
}

// Options configures a Handler
type Options struct {
	Config            *config.Config
	ConfigPath        string
	Controller        Controller
	Devices           DeviceLister
	Permissions       PermissionSource
	Logger            *zap.Logger
	OnSettingsChanged func(*config.Config) error
}

// New creates a new API handler
func New(opts Options) *Handler {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.GetConfigPath()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		config:            opts.Config,
		configPath:        opts.ConfigPath,
		controller:        opts.Controller,
		devices:           opts.Devices,
		perms:             opts.Permissions,
		logger:            opts.Logger,
		onSettingsChanged: opts.OnSettingsChanged,
	}
}

// Routes returns the router to mount under /api
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.handleStatus)
	r.Post("/toggle", h.handleToggle)
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.putSettings)
	r.Get("/devices", h.handleDevices)
	r.Get("/permissions", h.handlePermissions)
	return r
}

// Status is the body of GET /api/status
type Status struct {
	State        controller.State        `json:"state"`
	SessionID    string                  `json:"session_id"`
	Capabilities controller.Capabilities `json:"capabilities"`
}

func (h *Handler) status() Status {
	return Status{
		State:        h.controller.State(),
		SessionID:    h.controller.SessionID(),
		Capabilities: h.controller.Capabilities(),
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// handleToggle presses the talk control. The controller ignores presses
// that are not valid in its current state, so the reply echoes the state
// observed right after the press was queued.
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	h.controller.Toggle()
	writeJSON(w, http.StatusAccepted, h.status())
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Clone())
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate on a copy so a rejected update leaves the live config intact
	candidate := h.config.Clone()
	if err := candidate.Update(updates); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := candidate.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := hotkey.ConfigFrom(candidate.Hotkey, candidate.RecordingMode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.config.Update(updates); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.config.Save(h.configPath); err != nil {
		h.logger.Error("Failed to save config", zap.String("path", h.configPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}

	resp := map[string]string{"status": "success"}
	if h.onSettingsChanged != nil {
		if err := h.onSettingsChanged(h.config.Clone()); err != nil {
			h.logger.Warn("Settings saved but not applied", zap.Error(err))
			resp = map[string]string{
				"status":  "partial",
				"message": "Settings saved; restart Moira to apply them: " + err.Error(),
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Device represents an audio device
type Device struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		writeJSON(w, http.StatusOK, []Device{})
		return
	}

	devices, err := h.devices.ListDevices()
	if err != nil {
		h.logger.Error("Failed to list audio devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, Device{ID: d.ID, Name: d.Name, IsDefault: d.IsDefault})
	}
	writeJSON(w, http.StatusOK, result)
}

// Permission is one entry of GET /api/permissions
type Permission struct {
	Status  permissions.PermissionStatus `json:"status"`
	Granted bool                         `json:"granted"`
	Message string                       `json:"message"`
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	result := map[string]Permission{}
	if h.perms != nil {
		for name, status := range h.perms.CheckAllPermissions() {
			result[name] = Permission{
				Status:  status,
				Granted: status == permissions.PermissionAuthorized,
				Message: permissions.GetPermissionStatusMessage(status),
			}
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

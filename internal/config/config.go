package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultEndpoint is the demo inference backend
	DefaultEndpoint = "https://moira0teacher0gos0demo0backend.share.zrok.io/v1/ai_teacher"
	// DefaultQuestionText is the prompt sent alongside every recording
	DefaultQuestionText = "Αυτό είναι ένα τετράδιο."
)

// Environment variables that override the config file
const (
	EnvEndpoint      = "MOIRA_ENDPOINT"
	EnvQuestionText  = "MOIRA_QUESTION_TEXT"
	EnvClientID      = "MOIRA_CLIENT_ID"
	EnvUploadTimeout = "MOIRA_UPLOAD_TIMEOUT"
	EnvLogLevel      = "MOIRA_LOG_LEVEL"
)

// Config holds application configuration
type Config struct {
	Endpoint      string            `json:"endpoint"`
	QuestionText  string            `json:"question_text"`
	ClientID      string            `json:"client_id"`
	ExtraHeaders  map[string]string `json:"extra_headers"`
	UploadTimeout int               `json:"upload_timeout"` // seconds, 0 waits forever
	Hotkey        HotkeyConfig      `json:"hotkey"`
	RecordingMode string            `json:"recording_mode"` // "toggle" or "press-to-hold"
	AudioDeviceID int               `json:"audio_device_id"`
	UILanguage    string            `json:"ui_language"`     // "en", "ja" or "el"
	MaxRecordTime int               `json:"max_record_time"` // seconds
	LogLevel      string            `json:"log_level"`
	mu            sync.RWMutex
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"` // e.g., "Space"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Endpoint:     DefaultEndpoint,
		QuestionText: DefaultQuestionText,
		ExtraHeaders: map[string]string{
			"skip_zrok_interstitial": "true",
		},
		UploadTimeout: 60,
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "M",
		},
		RecordingMode: "toggle",
		AudioDeviceID: -1, // -1 means use system default device
		UILanguage:    "en",
		MaxRecordTime: 60,
		LogLevel:      "info",
	}
}

// Load loads configuration from the specified path.
// Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Hotkey.Key == "" {
		config.Hotkey.Key = "M"
	}

	return config, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from MOIRA_* environment variables
func (c *Config) ApplyEnv() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvQuestionText); v != "" {
		c.QuestionText = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvUploadTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvUploadTimeout, err)
		}
		c.UploadTimeout = n
	}
	return nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Library", "Application Support", "Moira", "config.json")
}

// Update updates configuration fields from a decoded JSON object
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "endpoint":
			if v, ok := value.(string); ok {
				if err := validateEndpoint(v); err != nil {
					return err
				}
				c.Endpoint = v
			}
		case "question_text":
			if v, ok := value.(string); ok {
				c.QuestionText = v
			}
		case "client_id":
			if v, ok := value.(string); ok {
				c.ClientID = v
			}
		case "upload_timeout":
			if v, ok := value.(float64); ok {
				if v < 0 {
					return fmt.Errorf("invalid upload_timeout: %v", v)
				}
				c.UploadTimeout = int(v)
			}
		case "recording_mode":
			if v, ok := value.(string); ok {
				if v != "press-to-hold" && v != "toggle" {
					return fmt.Errorf("invalid recording_mode: %s", v)
				}
				c.RecordingMode = v
			}
		case "audio_device_id":
			if v, ok := value.(float64); ok {
				c.AudioDeviceID = int(v)
			}
		case "ui_language":
			if v, ok := value.(string); ok {
				if !validUILanguage(v) {
					return fmt.Errorf("invalid ui_language: %s", v)
				}
				c.UILanguage = v
			}
		case "max_record_time":
			if v, ok := value.(float64); ok {
				c.MaxRecordTime = int(v)
			}
		case "log_level":
			if v, ok := value.(string); ok {
				c.LogLevel = v
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					c.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					c.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					c.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					c.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					c.Hotkey.Key = key
				}
			}
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	headers := make(map[string]string, len(c.ExtraHeaders))
	for k, v := range c.ExtraHeaders {
		headers[k] = v
	}

	return &Config{
		Endpoint:      c.Endpoint,
		QuestionText:  c.QuestionText,
		ClientID:      c.ClientID,
		ExtraHeaders:  headers,
		UploadTimeout: c.UploadTimeout,
		Hotkey:        c.Hotkey,
		RecordingMode: c.RecordingMode,
		AudioDeviceID: c.AudioDeviceID,
		UILanguage:    c.UILanguage,
		MaxRecordTime: c.MaxRecordTime,
		LogLevel:      c.LogLevel,
	}
}

// UploadTimeoutDuration returns the upload bound, zero meaning unbounded
func (c *Config) UploadTimeoutDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.UploadTimeout) * time.Second
}

// MaxRecordDuration returns the auto-stop limit for one capture
func (c *Config) MaxRecordDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.MaxRecordTime) * time.Second
}

func validUILanguage(v string) bool {
	return v == "en" || v == "ja" || v == "el"
}

// validateEndpoint requires an absolute http(s) URL
func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	return nil
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := validateEndpoint(c.Endpoint); err != nil {
		return err
	}

	if strings.TrimSpace(c.QuestionText) == "" {
		return fmt.Errorf("question_text cannot be empty")
	}

	if c.UploadTimeout < 0 || c.UploadTimeout > 600 {
		return fmt.Errorf("invalid upload_timeout: %d (must be between 0 and 600 seconds)", c.UploadTimeout)
	}

	if c.RecordingMode != "press-to-hold" && c.RecordingMode != "toggle" {
		return fmt.Errorf("invalid recording_mode: %s (must be 'press-to-hold' or 'toggle')", c.RecordingMode)
	}

	if !validUILanguage(c.UILanguage) {
		return fmt.Errorf("invalid ui_language: %s (must be 'en', 'ja' or 'el')", c.UILanguage)
	}

	if c.MaxRecordTime <= 0 || c.MaxRecordTime > 300 {
		return fmt.Errorf("invalid max_record_time: %d (must be between 1 and 300 seconds)", c.MaxRecordTime)
	}

	return nil
}

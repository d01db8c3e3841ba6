package notification

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/MoiraAI2024/widget/internal/controller"
	"github.com/MoiraAI2024/widget/internal/i18n"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeError is an error notification
	TypeError NotificationType = "error"
)

// Notification represents a macOS notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// Runner executes a command; replaced in tests
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// NotificationManager sends Notification Center banners and implements
// controller.Notifier
type NotificationManager struct {
	appName    string
	translator *i18n.Translator
	logger     *zap.Logger
	run        Runner
}

var _ controller.Notifier = (*NotificationManager)(nil)

// NewNotificationManager creates a new notification manager
func NewNotificationManager(appName string, translator *i18n.Translator, logger *zap.Logger) *NotificationManager {
	if translator == nil {
		translator = i18n.NewDefaultTranslator(i18n.LanguageEnglish)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationManager{
		appName:    appName,
		translator: translator,
		logger:     logger,
		run:        execRunner,
	}
}

// WithRunner replaces the command runner
func (nm *NotificationManager) WithRunner(run Runner) *NotificationManager {
	nm.run = run
	return nm
}

// Send sends a notification to the user via macOS notification center
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		escapeAppleScript(notification.Message),
		escapeAppleScript(notification.Title),
	)

	if err := nm.run("osascript", "-e", script); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// SendInfo sends an informational notification
func (nm *NotificationManager) SendInfo(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeInfo,
	})
}

// SendError sends an error notification
func (nm *NotificationManager) SendError(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeError,
	})
}

// Alert shows the localized message for kind. Delivery failures are
// logged; the underlying error is only logged, never shown.
func (nm *NotificationManager) Alert(kind controller.ErrorKind, err error) {
	message := nm.translator.Translate("error." + kind.String())
	if sendErr := nm.SendError(nm.appName, message); sendErr != nil {
		nm.logger.Warn("Failed to show alert",
			zap.Stringer("kind", kind),
			zap.NamedError("cause", err),
			zap.Error(sendErr))
	}
}

// SessionCopied confirms the session id was put on the clipboard
func (nm *NotificationManager) SessionCopied() error {
	return nm.SendInfo(nm.appName, nm.translator.Translate("notification.session_copied"))
}

// escapeAppleScript escapes characters that would break out of an
// AppleScript string literal
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

package permissions

import (
	"os/exec"
)

// PermissionStatus represents the status of a system permission
type PermissionStatus int

const (
	// PermissionNotDetermined means the user hasn't been asked yet
	PermissionNotDetermined PermissionStatus = 0
	// PermissionRestricted means the permission is restricted by parental controls
	PermissionRestricted PermissionStatus = 1
	// PermissionDenied means the user has explicitly denied the permission
	PermissionDenied PermissionStatus = 2
	// PermissionAuthorized means the user has authorized the permission
	PermissionAuthorized PermissionStatus = 3
)

const microphoneSettingsURL = "x-apple.systempreferences:com.apple.preference.security?Privacy_Microphone"

// PermissionChecker reports the microphone permission the capture device depends on
type PermissionChecker struct {
	status func() PermissionStatus
	open   func(url string) error
}

// NewPermissionChecker creates a checker backed by the platform probe
func NewPermissionChecker() *PermissionChecker {
	return &PermissionChecker{
		status: microphoneStatus,
		open:   openURL,
	}
}

// CheckMicrophonePermission checks if the application has microphone access permission
func (pc *PermissionChecker) CheckMicrophonePermission() PermissionStatus {
	return pc.status()
}

// IsMicrophoneAuthorized returns whether microphone permission is granted
func (pc *PermissionChecker) IsMicrophoneAuthorized() bool {
	return pc.CheckMicrophonePermission() == PermissionAuthorized
}

// MicrophoneDenied reports a definite refusal. NotDetermined is not a
// refusal: the system prompt appears when the device is first opened.
func (pc *PermissionChecker) MicrophoneDenied() bool {
	switch pc.CheckMicrophonePermission() {
	case PermissionDenied, PermissionRestricted:
		return true
	default:
		return false
	}
}

// RequestMicrophonePermission opens system settings for microphone permission
func (pc *PermissionChecker) RequestMicrophonePermission() error {
	return pc.open(microphoneSettingsURL)
}

// PermissionStatus string representation
func (ps PermissionStatus) String() string {
	switch ps {
	case PermissionNotDetermined:
		return "NotDetermined"
	case PermissionRestricted:
		return "Restricted"
	case PermissionDenied:
		return "Denied"
	case PermissionAuthorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the status by name for the local API
func (ps PermissionStatus) MarshalText() ([]byte, error) {
	return []byte(ps.String()), nil
}

// CheckAllPermissions reports every permission the widget needs
func (pc *PermissionChecker) CheckAllPermissions() map[string]PermissionStatus {
	return map[string]PermissionStatus{
		"microphone": pc.CheckMicrophonePermission(),
	}
}

// GetPermissionStatusMessage returns a human-readable message for a permission status
func GetPermissionStatusMessage(status PermissionStatus) string {
	switch status {
	case PermissionNotDetermined:
		return "Permission not yet determined"
	case PermissionRestricted:
		return "Permission restricted by parental controls"
	case PermissionDenied:
		return "Permission denied"
	case PermissionAuthorized:
		return "Permission authorized"
	default:
		return "Unknown permission status"
	}
}

func openURL(url string) error {
	return exec.Command("open", url).Run()
}

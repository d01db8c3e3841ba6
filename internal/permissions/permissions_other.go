//go:build !darwin

package permissions

// Other platforms have no per-app microphone gate; the device open decides.
func microphoneStatus() PermissionStatus {
	return PermissionAuthorized
}

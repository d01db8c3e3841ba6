package clipboard

import (
	"errors"
	"fmt"

	"github.com/go-vgo/robotgo"
)

// ErrEmpty is returned when there is nothing to copy
var ErrEmpty = errors.New("nothing to copy")

// Manager writes plain text to the system pasteboard
type Manager struct {
	write func(string) error
	read  func() (string, error)
}

// NewManager creates a clipboard manager backed by robotgo
func NewManager() *Manager {
	return &Manager{
		write: robotgo.WriteAll,
		read:  robotgo.ReadAll,
	}
}

// Copy places text on the clipboard
func (m *Manager) Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	if err := m.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// Content returns the current clipboard content
func (m *Manager) Content() (string, error) {
	content, err := m.read()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return content, nil
}

package clipboard

import (
	"errors"
	"testing"
)

type memoryBoard struct {
	content string
	err     error
}

func (b *memoryBoard) manager() *Manager {
	return &Manager{
		write: func(s string) error {
			if b.err != nil {
				return b.err
			}
			b.content = s
			return nil
		},
		read: func() (string, error) {
			return b.content, b.err
		},
	}
}

func TestNewManager(t *testing.T) {
	if m := NewManager(); m == nil || m.write == nil || m.read == nil {
		t.Fatal("Expected manager with clipboard backend")
	}
}

func TestCopy(t *testing.T) {
	board := &memoryBoard{}
	m := board.manager()

	id := "0b5e8f3c-1d2a-4c6e-9f7b-3a2d1c0e9f8a"
	if err := m.Copy(id); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	content, err := m.Content()
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if content != id {
		t.Errorf("Expected %q, got %q", id, content)
	}
}

func TestCopyEmpty(t *testing.T) {
	board := &memoryBoard{content: "keep"}
	m := board.manager()

	if err := m.Copy(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
	if board.content != "keep" {
		t.Error("Expected clipboard to be left untouched")
	}
}

func TestCopyError(t *testing.T) {
	backendErr := errors.New("pasteboard unavailable")
	m := (&memoryBoard{err: backendErr}).manager()

	if err := m.Copy("abc"); !errors.Is(err, backendErr) {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
	if _, err := m.Content(); !errors.Is(err, backendErr) {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
}

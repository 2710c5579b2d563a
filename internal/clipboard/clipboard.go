// Package clipboard provides access to the process-wide text clipboard and
// the save/restore discipline every user of it must follow.
package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned when no clipboard can be reached.
var ErrUnavailable = errors.New("clipboard unavailable")

// Clipboard is a single shared text value.
type Clipboard interface {
	Get() (string, error)
	Set(text string) error
}

// System is the operating system clipboard.
type System struct{}

// NewSystem returns the OS clipboard, or ErrUnavailable when the platform has
// no clipboard utility (for example a headless Linux host without xclip).
func NewSystem() (*System, error) {
	if clipboard.Unsupported {
		return nil, ErrUnavailable
	}
	return &System{}, nil
}

func (System) Get() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return text, nil
}

func (System) Set(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Memory is an in-process clipboard for tests and headless browser sessions.
type Memory struct {
	mu   sync.Mutex
	text string
	// writes counts Set calls.
	writes int
}

// NewMemory returns a Memory clipboard holding initial.
func NewMemory(initial string) *Memory {
	return &Memory{text: initial}
}

func (m *Memory) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *Memory) Set(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes++
	return nil
}

// Writes reports how many times Set has been called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Preserve saves the clipboard, runs fn and restores the saved value, even
// when fn fails. A failure to save means the clipboard cannot be used at all
// and fn is not run. A restore failure is reported only if fn succeeded.
func Preserve(cb Clipboard, fn func() error) error {
	saved, err := cb.Get()
	if err != nil {
		return fmt.Errorf("saving clipboard: %w", err)
	}
	fnErr := fn()
	if err := cb.Set(saved); err != nil && fnErr == nil {
		return fmt.Errorf("restoring clipboard: %w", err)
	}
	return fnErr
}

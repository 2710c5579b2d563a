// internal/humanoid/interface.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// Controller defines the high-level input operations used during replay.
// This is the interface implemented by the Humanoid struct itself.
type Controller interface {
	MoveTo(ctx context.Context, target schemas.Point) error
	// Click moves to target and clicks count times (2 = double click, 3 = triple click).
	Click(ctx context.Context, target schemas.Point, count int) error
	// Shortcut executes a keyboard shortcut (e.g., "ctrl+c", "shift+home").
	Shortcut(ctx context.Context, keysExpression string) error
	// Press presses and releases a single named key (e.g., "Delete", "End").
	Press(ctx context.Context, key string) error
	// Type enters text character by character.
	Type(ctx context.Context, text string) error
}

// Executor defines the low-level interface required by the Humanoid controller.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	SendKeys(ctx context.Context, keys string) error
	// DispatchStructuredKey handles pressing a key combination (like a shortcut).
	// The executor is responsible for the KeyDown and KeyUp sequence.
	DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error
}

// Named keys understood by executors.
const (
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyHome      = "Home"
	KeyEnd       = "End"
	KeyEnter     = "Enter"
	KeyTab       = "Tab"
	KeyEscape    = "Escape"
)

package schemas

// -- Input Synthesis Schemas --

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Valid reports whether b is one of the known buttons.
func (b MouseButton) Valid() bool {
	switch b {
	case ButtonNone, ButtonLeft, ButtonRight, ButtonMiddle:
		return true
	}
	return false
}

// Mask returns the pressed-buttons bitfield for b (1: Left, 2: Right, 4: Middle).
func (b MouseButton) Mask() int64 {
	switch b {
	case ButtonLeft:
		return 1
	case ButtonRight:
		return 2
	case ButtonMiddle:
		return 4
	}
	return 0
}

// MouseEventData encapsulates all data for a mouse event.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	Buttons    int64          `json:"buttons"`
	ClickCount int            `json:"clickCount"`
}

// KeyEventData represents a structured key event, including the main key and active modifiers.
type KeyEventData struct {
	// Key is the primary key pressed (e.g., "a", "c", "Delete", "Home").
	Key string
	// Modifiers is a bitmask of active modifiers.
	Modifiers KeyModifier
}

// KeyModifier represents keyboard modifiers (Ctrl, Alt, Shift, Meta).
// These values correspond directly to the CDP input.DispatchKeyEvent modifiers bitfield.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1
	ModCtrl  KeyModifier = 2
	ModMeta  KeyModifier = 4
	ModShift KeyModifier = 8
)

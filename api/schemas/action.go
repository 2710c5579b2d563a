package schemas

import (
	"errors"
	"fmt"
	"time"
)

// ActionKind identifies what a recorded action does. Only clicks are captured.
type ActionKind string

const (
	ActionClick ActionKind = "click"
)

// ErrEmptySequence is returned when a replay is attempted with nothing recorded.
var ErrEmptySequence = errors.New("action sequence is empty")

// RecordedAction is a single timestamped pointer click.
type RecordedAction struct {
	Kind ActionKind `json:"type" yaml:"type"`
	// Timestamp is expressed in seconds since the Unix epoch, with sub-second precision.
	Timestamp float64     `json:"timestamp" yaml:"timestamp"`
	X         int         `json:"x" yaml:"x"`
	Y         int         `json:"y" yaml:"y"`
	Button    MouseButton `json:"button" yaml:"button"`
}

// Point returns the click position.
func (a RecordedAction) Point() Point {
	return Point{X: a.X, Y: a.Y}
}

// ActionSequence is the ordered list of recorded actions. Insertion order is replay order.
type ActionSequence []RecordedAction

// Origin returns the timestamp of the first action, the time origin of the sequence.
func (s ActionSequence) Origin() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[0].Timestamp
}

// Offset returns the recorded delay of action i relative to the sequence origin.
func (s ActionSequence) Offset(i int) time.Duration {
	if i <= 0 || i >= len(s) {
		return 0
	}
	return time.Duration((s[i].Timestamp - s.Origin()) * float64(time.Second))
}

// Duration is the recorded time between the first and the last action.
func (s ActionSequence) Duration() time.Duration {
	return s.Offset(len(s) - 1)
}

// Clone returns a copy that shares no backing array with s.
func (s ActionSequence) Clone() ActionSequence {
	if s == nil {
		return nil
	}
	out := make(ActionSequence, len(s))
	copy(out, s)
	return out
}

// Validate checks the sequence is replayable.
func (s ActionSequence) Validate() error {
	if len(s) == 0 {
		return ErrEmptySequence
	}
	return s.validateRecords()
}

// validateRecords checks every record without requiring a non-empty sequence.
func (s ActionSequence) validateRecords() error {
	for i, a := range s {
		if a.Kind != ActionClick {
			return fmt.Errorf("action %d: unsupported kind %q", i, a.Kind)
		}
		if !a.Button.Valid() {
			return fmt.Errorf("action %d: unknown button %q", i, a.Button)
		}
		if i > 0 && a.Timestamp < s[i-1].Timestamp {
			return fmt.Errorf("action %d: timestamp %.6f precedes previous action", i, a.Timestamp)
		}
	}
	return nil
}

// ValidateRecords checks record contents only; an empty sequence is accepted.
// Stores use this so that an empty recording can still be persisted and loaded.
func (s ActionSequence) ValidateRecords() error {
	return s.validateRecords()
}

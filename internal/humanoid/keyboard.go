// internal/humanoid/keyboard.go
package humanoid

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

var modifierNames = map[string]schemas.KeyModifier{
	"ctrl":    schemas.ModCtrl,
	"control": schemas.ModCtrl,
	"alt":     schemas.ModAlt,
	"option":  schemas.ModAlt,
	"shift":   schemas.ModShift,
	"meta":    schemas.ModMeta,
	"cmd":     schemas.ModMeta,
	"command": schemas.ModMeta,
}

var namedKeys = map[string]string{
	"delete":    KeyDelete,
	"del":       KeyDelete,
	"backspace": KeyBackspace,
	"home":      KeyHome,
	"end":       KeyEnd,
	"enter":     KeyEnter,
	"return":    KeyEnter,
	"tab":       KeyTab,
	"escape":    KeyEscape,
	"esc":       KeyEscape,
}

// ParseShortcut turns an expression such as "ctrl+shift+home" into a key event.
func ParseShortcut(expr string) (schemas.KeyEventData, error) {
	parts := strings.Split(expr, "+")
	var data schemas.KeyEventData
	for i, raw := range parts {
		part := strings.ToLower(strings.TrimSpace(raw))
		if part == "" {
			return schemas.KeyEventData{}, fmt.Errorf("humanoid: malformed shortcut %q", expr)
		}
		if i < len(parts)-1 {
			mod, ok := modifierNames[part]
			if !ok {
				return schemas.KeyEventData{}, fmt.Errorf("humanoid: unknown modifier %q in %q", part, expr)
			}
			data.Modifiers |= mod
			continue
		}
		data.Key = normalizeKey(part)
	}
	return data, nil
}

func normalizeKey(k string) string {
	if named, ok := namedKeys[strings.ToLower(k)]; ok {
		return named
	}
	return k
}

// Shortcut executes a keyboard shortcut, then pauses briefly so the target
// application can react (for example update its selection).
func (h *Humanoid) Shortcut(ctx context.Context, keysExpression string) error {
	data, err := ParseShortcut(keysExpression)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.executor.DispatchStructuredKey(ctx, data); err != nil {
		return fmt.Errorf("humanoid: shortcut %q failed: %w", keysExpression, err)
	}
	return h.executor.Sleep(ctx, h.settle())
}

// Press presses a single key without modifiers.
func (h *Humanoid) Press(ctx context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	data := schemas.KeyEventData{Key: normalizeKey(key)}
	if err := h.executor.DispatchStructuredKey(ctx, data); err != nil {
		return fmt.Errorf("humanoid: key %q failed: %w", key, err)
	}
	return h.executor.Sleep(ctx, h.settle())
}

// Type sends text one character at a time, paced by the key rate limiter.
func (h *Humanoid) Type(ctx context.Context, text string) error {
	for _, r := range text {
		if err := h.keys.Wait(ctx); err != nil {
			return err
		}
		h.mu.Lock()
		err := h.executor.SendKeys(ctx, string(r))
		h.mu.Unlock()
		if err != nil {
			return fmt.Errorf("humanoid: failed to send key %q: %w", r, err)
		}
	}
	return nil
}

// internal/humanoid/movement.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"go.uber.org/zap"
)

// MoveTo moves the pointer to target along a short eased trajectory.
func (h *Humanoid) MoveTo(ctx context.Context, target schemas.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveTo(ctx, FromPoint(target))
}

// moveTo is the non-locking counterpart of MoveTo.
func (h *Humanoid) moveTo(ctx context.Context, target Vector2D) error {
	start := h.currentPos
	steps := h.cfg.MoveSteps
	if steps < 1 || start.Dist(target) < 1 {
		steps = 1
	}
	var pause time.Duration
	if steps > 1 && h.cfg.MoveDurationMs > 0 {
		pause = time.Duration(h.cfg.MoveDurationMs) * time.Millisecond / time.Duration(steps)
	}

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos := start.Lerp(target, smoothstep(float64(i)/float64(steps)))
		if i == steps {
			pos = target
		}
		ev := schemas.MouseEventData{
			Type:    schemas.MouseMove,
			X:       pos.X,
			Y:       pos.Y,
			Button:  schemas.ButtonNone,
			Buttons: h.currentButton.Mask(),
		}
		if err := h.executor.DispatchMouseEvent(ctx, ev); err != nil {
			return err
		}
		h.currentPos = pos
		if pause > 0 && i < steps {
			if err := h.executor.Sleep(ctx, pause); err != nil {
				return err
			}
		}
	}
	h.logger.Debug("pointer moved", zap.Float64("x", target.X), zap.Float64("y", target.Y), zap.Int("steps", steps))
	return nil
}

// internal/humanoid/clickmodel.go
package humanoid

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// Click moves to target and performs count consecutive left clicks. The
// click count rises with each press so targets see a real double or triple click.
func (h *Humanoid) Click(ctx context.Context, target schemas.Point, count int) error {
	if count < 1 {
		return fmt.Errorf("humanoid: click count must be positive, got %d", count)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.moveTo(ctx, FromPoint(target)); err != nil {
		return err
	}
	for n := 1; n <= count; n++ {
		if err := h.clickOnce(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// clickOnce presses and releases the left button at the current position.
func (h *Humanoid) clickOnce(ctx context.Context, clickCount int) error {
	pos := h.currentPos
	down := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		Buttons:    schemas.ButtonLeft.Mask(),
		ClickCount: clickCount,
	}
	if err := h.executor.DispatchMouseEvent(ctx, down); err != nil {
		return err
	}
	h.currentButton = schemas.ButtonLeft

	if err := h.executor.Sleep(ctx, h.clickHold()); err != nil {
		// Never leave the button held down on the target.
		h.releaseMouse(clickCount)
		return err
	}
	return h.release(ctx, clickCount)
}

func (h *Humanoid) release(ctx context.Context, clickCount int) error {
	up := schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          h.currentPos.X,
		Y:          h.currentPos.Y,
		Button:     schemas.ButtonLeft,
		Buttons:    0,
		ClickCount: clickCount,
	}
	if err := h.executor.DispatchMouseEvent(ctx, up); err != nil {
		return err
	}
	h.currentButton = schemas.ButtonNone
	return nil
}

// releaseMouse releases the button with a fresh context after a cancelled hold.
func (h *Humanoid) releaseMouse(clickCount int) {
	if err := h.release(context.Background(), clickCount); err != nil {
		h.logger.Warn("failed to release mouse button after interrupted click")
	}
}

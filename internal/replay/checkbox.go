package replay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	checkboxConfidence = 0.8
	checkboxPause      = 200 * time.Millisecond
	// maxCheckboxClicks bounds the reset when a click does not untick the box.
	maxCheckboxClicks = 50
)

// resetCheckboxes clicks every ticked checkbox matching the configured
// image until none is found. Lookup and click failures end the reset with
// a warning; only a stop or cancellation is returned.
func (e *Engine) resetCheckboxes(ctx context.Context, row int) error {
	img := e.options().CheckboxImage
	if len(img) == 0 {
		return nil
	}
	for clicks := 0; ; clicks++ {
		if clicks == maxCheckboxClicks {
			e.log.Warn("Checkbox still ticked after repeated clicks, giving up.", zap.Int("row", row), zap.Int("clicks", clicks))
			return nil
		}
		region, found, err := e.vision.Locate(ctx, img, checkboxConfidence)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("Checkbox lookup failed.", zap.Int("row", row), zap.Error(err))
			return nil
		}
		if !found {
			if clicks > 0 {
				e.log.Debug("Checkboxes reset.", zap.Int("row", row), zap.Int("clicks", clicks))
			}
			return nil
		}
		if err := e.input.Click(ctx, region.Center(), 1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("Checkbox click failed.", zap.Int("row", row), zap.Error(err))
			return nil
		}
		if err := e.sleep(ctx, checkboxPause); err != nil {
			return err
		}
	}
}

// Package vision reads field contents and finds reference images on screen.
package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
	"go.uber.org/zap"
)

// ErrNotText is returned when nothing could be copied from a region. A
// browser copies nothing from an empty selection, so an empty field reports
// ErrNotText too; callers that just cleared the field treat it as empty.
var ErrNotText = errors.New("region does not hold editable text")

// Sentinel is placed on the clipboard before a read-back. If it is still
// there after select-all and copy, nothing was copied.
const Sentinel = "%%KNOWN%%"

// Reader reads the current text of a field.
type Reader interface {
	ReadText(ctx context.Context, region schemas.Region) (string, error)
}

// Locator finds a reference image on screen.
type Locator interface {
	Locate(ctx context.Context, reference []byte, confidence float64) (schemas.Region, bool, error)
}

// Vision combines both capabilities.
type Vision interface {
	Reader
	Locator
}

// ClipboardVision reads a field by clicking it, selecting everything and
// copying it to the clipboard. The clipboard is restored afterwards.
type ClipboardVision struct {
	input   humanoid.Controller
	cb      clipboard.Clipboard
	locator Locator
	log     *zap.Logger
}

var _ Vision = (*ClipboardVision)(nil)

// NewClipboardVision creates a read-back vision. locator may be nil, in which
// case Locate never finds anything.
func NewClipboardVision(input humanoid.Controller, cb clipboard.Clipboard, locator Locator, logger *zap.Logger) *ClipboardVision {
	return &ClipboardVision{input: input, cb: cb, locator: locator, log: logger.Named("vision")}
}

// ReadText returns the text of the field at the centre of region.
func (v *ClipboardVision) ReadText(ctx context.Context, region schemas.Region) (string, error) {
	if err := v.input.Click(ctx, region.Center(), 1); err != nil {
		return "", fmt.Errorf("focusing field: %w", err)
	}
	var text string
	err := clipboard.Preserve(v.cb, func() error {
		if err := v.cb.Set(Sentinel); err != nil {
			return err
		}
		if err := v.input.Shortcut(ctx, "ctrl+a"); err != nil {
			return err
		}
		if err := v.input.Shortcut(ctx, "ctrl+c"); err != nil {
			return err
		}
		got, err := v.cb.Get()
		if err != nil {
			return err
		}
		text = got
		return nil
	})
	if err != nil {
		return "", err
	}
	if text == Sentinel {
		v.log.Debug("Nothing copied from region.", zap.Int("x", region.X), zap.Int("y", region.Y))
		return "", ErrNotText
	}
	return text, nil
}

// Locate delegates to the configured locator.
func (v *ClipboardVision) Locate(ctx context.Context, reference []byte, confidence float64) (schemas.Region, bool, error) {
	if v.locator == nil || len(reference) == 0 {
		return schemas.Region{}, false, nil
	}
	return v.locator.Locate(ctx, reference, confidence)
}

// SlotConfidences are tried in order when re-locating a field slot.
var SlotConfidences = []float64{0.9, 0.8, 0.7}

// LocateSlot returns where to click for slot. It searches for the slot's
// reference image at decreasing confidence and falls back to the saved
// position; found reports whether the image was seen.
func LocateSlot(ctx context.Context, l Locator, slot schemas.FieldSlot) (schemas.Point, bool, error) {
	if l == nil || len(slot.ReferenceImage) == 0 {
		return slot.ClickPoint(), false, nil
	}
	for _, c := range SlotConfidences {
		region, ok, err := l.Locate(ctx, slot.ReferenceImage, c)
		if err != nil {
			return slot.ClickPoint(), false, err
		}
		if ok {
			return slot.ClickPointIn(region), true, nil
		}
	}
	return slot.ClickPoint(), false, nil
}

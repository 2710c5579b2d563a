package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/vision"
	"go.uber.org/zap"
)

const cleanupTimeout = 2 * time.Second

// readbackScript inspects the element under a viewport point.
const readbackScript = `((x, y) => {
	const el = document.elementFromPoint(x, y);
	if (!el) return {ok: false};
	const tag = el.tagName.toLowerCase();
	if (tag === "textarea" || (tag === "input" && typeof el.value === "string")) {
		return {ok: true, text: el.value};
	}
	if (el.isContentEditable) return {ok: true, text: el.innerText};
	return {ok: false};
})(%d, %d)`

// DOMVision reads fields straight from the DOM and locates reference
// images in tab screenshots. Unlike the clipboard read-back it neither
// clicks nor touches the clipboard.
type DOMVision struct {
	session *Session
	locator *vision.ScreenLocator
	logger  *zap.Logger
}

var _ vision.Vision = (*DOMVision)(nil)

func NewDOMVision(session *Session, logger *zap.Logger) *DOMVision {
	return &DOMVision{
		session: session,
		locator: vision.NewScreenLocator(session),
		logger:  logger.Named("cdp_vision"),
	}
}

func (v *DOMVision) ReadText(ctx context.Context, region schemas.Region) (string, error) {
	c := region.Center()
	var raw []byte
	if err := v.session.Run(ctx, chromedp.Evaluate(fmt.Sprintf(readbackScript, c.X, c.Y), &raw)); err != nil {
		return "", fmt.Errorf("reading field at %d,%d: %w", c.X, c.Y, err)
	}
	text, ok := parseReadback(raw)
	if !ok {
		v.logger.Debug("No editable element under point.", zap.Int("x", c.X), zap.Int("y", c.Y))
		return "", vision.ErrNotText
	}
	return text, nil
}

func (v *DOMVision) Locate(ctx context.Context, reference []byte, confidence float64) (schemas.Region, bool, error) {
	return v.locator.Locate(ctx, reference, confidence)
}

func parseReadback(raw []byte) (string, bool) {
	if !gjson.ValidBytes(raw) {
		return "", false
	}
	res := gjson.GetManyBytes(raw, "ok", "text")
	if !res[0].Bool() {
		return "", false
	}
	return res[1].String(), true
}

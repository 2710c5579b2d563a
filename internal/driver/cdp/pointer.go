package cdp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/recorder"
	"go.uber.org/zap"
)

const pointerBinding = "__autofillPointer"

var pointerScript = fmt.Sprintf(`(() => {
	if (window.__autofillPointerInstalled || typeof window.%[1]s !== "function") return;
	window.__autofillPointerInstalled = true;
	const post = (ev, pressed) => window.%[1]s(JSON.stringify({
		x: ev.clientX, y: ev.clientY, button: ev.button, pressed: pressed,
	}));
	document.addEventListener("mousedown", ev => post(ev, true), true);
	document.addEventListener("mouseup", ev => post(ev, false), true);
})()`, pointerBinding)

var errBadPayload = errors.New("malformed pointer payload")

// PointerSource reports the operator's clicks inside the tab.
type PointerSource struct {
	session *Session
	logger  *zap.Logger
}

var _ recorder.PointerSource = (*PointerSource)(nil)

func NewPointerSource(session *Session, logger *zap.Logger) *PointerSource {
	return &PointerSource{session: session, logger: logger.Named("cdp_pointer")}
}

// Subscribe installs the page listener and forwards every press and release
// to handler until the returned function is called or ctx ends.
func (p *PointerSource) Subscribe(ctx context.Context, handler func(recorder.PointerEvent)) (func(), error) {
	listenCtx, cancel := context.WithCancel(p.session.Context())
	stop := context.AfterFunc(ctx, cancel)

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != pointerBinding {
			return
		}
		pe, err := parsePointerPayload(called.Payload)
		if err != nil {
			p.logger.Debug("Dropping pointer payload.", zap.Error(err))
			return
		}
		handler(pe)
	})

	var scriptID page.ScriptIdentifier
	err := p.session.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.AddBinding(pointerBinding).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			scriptID, err = page.AddScriptToEvaluateOnNewDocument(pointerScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(pointerScript, nil),
	)
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("installing pointer listener: %w", err)
	}
	p.logger.Debug("Pointer listener installed.")

	unsubscribe := func() {
		stop()
		cancel()
		cleanupCtx, done := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer done()
		err := p.session.Run(cleanupCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				return page.RemoveScriptToEvaluateOnNewDocument(scriptID).Do(ctx)
			}),
			chromedp.ActionFunc(func(ctx context.Context) error {
				return runtime.RemoveBinding(pointerBinding).Do(ctx)
			}),
		)
		if err != nil {
			p.logger.Debug("Pointer listener cleanup failed.", zap.Error(err))
		}
	}
	return unsubscribe, nil
}

// parsePointerPayload decodes the JSON the page posts through the binding.
func parsePointerPayload(payload string) (recorder.PointerEvent, error) {
	if !gjson.Valid(payload) {
		return recorder.PointerEvent{}, errBadPayload
	}
	res := gjson.GetMany(payload, "x", "y", "button", "pressed")
	if !res[0].Exists() || !res[1].Exists() {
		return recorder.PointerEvent{}, errBadPayload
	}
	var button schemas.MouseButton
	switch res[2].Int() {
	case 0:
		button = schemas.ButtonLeft
	case 1:
		button = schemas.ButtonMiddle
	case 2:
		button = schemas.ButtonRight
	default:
		button = schemas.ButtonNone
	}
	return recorder.PointerEvent{
		X:       int(math.Round(res[0].Float())),
		Y:       int(math.Round(res[1].Float())),
		Button:  button,
		Pressed: res[3].Bool(),
	}, nil
}

package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
	"go.uber.org/zap"
)

// selectionScript returns the selected text of the focused element.
const selectionScript = `(() => {
	const el = document.activeElement;
	if (el && typeof el.selectionStart === "number" && typeof el.value === "string") {
		return el.value.substring(el.selectionStart, el.selectionEnd);
	}
	const sel = window.getSelection();
	return sel ? sel.toString() : "";
})()`

// Executor dispatches synthesized input into the session's tab.
//
// Headless Chrome has no access to the OS clipboard, so copy and paste
// shortcuts are emulated against cb: copy stores the current selection and
// paste inserts cb's text at the caret.
type Executor struct {
	session *Session
	cb      clipboard.Clipboard
	logger  *zap.Logger
}

var _ humanoid.Executor = (*Executor)(nil)

func NewExecutor(session *Session, cb clipboard.Clipboard, logger *zap.Logger) *Executor {
	return &Executor{session: session, cb: cb, logger: logger.Named("cdp_executor")}
}

func (e *Executor) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	params := mouseParams(data)
	return e.session.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return params.Do(ctx)
	}))
}

// mouseParams converts a mouse event into its DevTools form.
func mouseParams(data schemas.MouseEventData) *input.DispatchMouseEventParams {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y)
	if data.Button != "" {
		p = p.WithButton(input.MouseButton(data.Button))
	}
	if data.Buttons != 0 {
		p = p.WithButtons(data.Buttons)
	}
	if data.ClickCount > 0 {
		p = p.WithClickCount(int64(data.ClickCount))
	}
	return p
}

func (e *Executor) SendKeys(ctx context.Context, keys string) error {
	return e.session.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(keys).Do(ctx)
	}))
}

func (e *Executor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	switch classify(data) {
	case opCopy:
		return e.copySelection(ctx)
	case opPaste:
		return e.paste(ctx)
	}
	events := keyEvents(data)
	return e.session.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ev := range events {
			if err := ev.Do(ctx); err != nil {
				return fmt.Errorf("dispatching key %q: %w", data.Key, err)
			}
		}
		return nil
	}))
}

// copySelection mirrors a native copy: with nothing selected the clipboard is untouched.
func (e *Executor) copySelection(ctx context.Context) error {
	var selected string
	if err := e.session.Run(ctx, chromedp.Evaluate(selectionScript, &selected)); err != nil {
		return fmt.Errorf("reading selection: %w", err)
	}
	if selected == "" {
		e.logger.Debug("Copy with empty selection ignored.")
		return nil
	}
	return e.cb.Set(selected)
}

func (e *Executor) paste(ctx context.Context) error {
	text, err := e.cb.Get()
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return e.SendKeys(ctx, text)
}

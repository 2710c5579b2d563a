package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
	"github.com/xkilldash9x/autofill-cli/internal/status"
	"github.com/xkilldash9x/autofill-cli/internal/vision"
	"go.uber.org/zap"
)

// ErrVerifyMismatch means a field read back something other than what was inserted.
var ErrVerifyMismatch = errors.New("read-back does not match inserted value")

// FieldError reports a field that could not be filled within the attempt limit.
type FieldError struct {
	Row      int
	Action   int
	Column   int
	Value    string
	Got      string
	Attempts int
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d action %d (column %d): field not filled after %d attempts, want %q, read %q: %v",
		e.Row, e.Action, e.Column, e.Attempts, e.Value, e.Got, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// clearStrategy is one way of emptying a focused text field.
type clearStrategy struct {
	name string
	run  func(ctx context.Context, in humanoid.Controller, p schemas.Point) error
}

func steps(fns ...func() error) error {
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// clearChain is tried in order until a read-back shows an empty field.
var clearChain = []clearStrategy{
	{"select_all_delete", func(ctx context.Context, in humanoid.Controller, p schemas.Point) error {
		return steps(
			func() error { return in.Click(ctx, p, 1) },
			func() error { return in.Shortcut(ctx, "ctrl+a") },
			func() error { return in.Press(ctx, humanoid.KeyDelete) },
		)
	}},
	{"click_delete", func(ctx context.Context, in humanoid.Controller, p schemas.Point) error {
		return steps(
			func() error { return in.Click(ctx, p, 1) },
			func() error { return in.Press(ctx, humanoid.KeyDelete) },
		)
	}},
	{"double_click_delete", func(ctx context.Context, in humanoid.Controller, p schemas.Point) error {
		return steps(
			func() error { return in.Click(ctx, p, 2) },
			func() error { return in.Press(ctx, humanoid.KeyDelete) },
		)
	}},
	{"triple_click_delete", func(ctx context.Context, in humanoid.Controller, p schemas.Point) error {
		return steps(
			func() error { return in.Click(ctx, p, 3) },
			func() error { return in.Press(ctx, humanoid.KeyDelete) },
		)
	}},
	{"end_shift_home_delete", func(ctx context.Context, in humanoid.Controller, p schemas.Point) error {
		return steps(
			func() error { return in.Click(ctx, p, 1) },
			func() error { return in.Press(ctx, humanoid.KeyEnd) },
			func() error { return in.Shortcut(ctx, "shift+home") },
			func() error { return in.Press(ctx, humanoid.KeyDelete) },
		)
	}},
}

// target is where an action's field is on screen for this row.
type target struct {
	row, action, column int
	point               schemas.Point
	region              schemas.Region
}

func (t target) fields() []zap.Field {
	return []zap.Field{zap.Int("row", t.row), zap.Int("action", t.action), zap.Int("column", t.column)}
}

// fill runs clear, insert and verify for one field, retrying the whole cycle
// up to MaxAttempts times.
func (e *Engine) fill(ctx context.Context, t target, value string) error {
	opts := e.options()
	var got string
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			e.log.Warn("Retrying field.", append(t.fields(), zap.Int("attempt", attempt), zap.Error(lastErr))...)
			e.publish(status.TypeFieldRetry, t.row, fmt.Sprintf("action %d attempt %d/%d", t.action, attempt, opts.MaxAttempts), lastErr)
			if err := e.clock.Sleep(ctx, opts.RetryPause); err != nil {
				return err
			}
		}

		if !e.clear(ctx, t) {
			e.log.Warn("Could not confirm field is empty, inserting anyway.", t.fields()...)
		}
		if err := e.insert(ctx, t, value); err != nil {
			lastErr = err
			continue
		}
		if !opts.Verify {
			return nil
		}
		var err error
		got, err = e.vision.ReadText(ctx, t.region)
		switch {
		case err != nil:
			lastErr = err
		case strings.TrimSpace(got) == strings.TrimSpace(value):
			return nil
		default:
			lastErr = ErrVerifyMismatch
		}
	}
	return &FieldError{
		Row:      t.row,
		Action:   t.action,
		Column:   t.column,
		Value:    value,
		Got:      got,
		Attempts: opts.MaxAttempts,
		Err:      lastErr,
	}
}

// clear tries each strategy until the field reads back empty. It reports
// whether emptiness was confirmed.
func (e *Engine) clear(ctx context.Context, t target) bool {
	for _, s := range clearChain {
		if err := s.run(ctx, e.input, t.point); err != nil {
			e.log.Debug("Clear strategy failed.", append(t.fields(), zap.String("strategy", s.name), zap.Error(err))...)
			continue
		}
		text, err := e.vision.ReadText(ctx, t.region)
		switch {
		case err == nil && strings.TrimSpace(text) == "":
			return true
		case errors.Is(err, vision.ErrNotText):
			// Nothing to copy right after a delete means the field is empty.
			return true
		}
		e.log.Debug("Field not empty after clear.", append(t.fields(), zap.String("strategy", s.name))...)
	}
	return false
}

// insert focuses the field and enters value, through the clipboard when
// enabled and by typing otherwise or when the clipboard fails.
func (e *Engine) insert(ctx context.Context, t target, value string) error {
	if err := e.input.Click(ctx, t.point, 1); err != nil {
		return fmt.Errorf("focusing field: %w", err)
	}
	if e.options().UseClipboard && e.cb != nil {
		pasted := false
		err := clipboard.Preserve(e.cb, func() error {
			if err := e.cb.Set(value); err != nil {
				return err
			}
			if err := e.input.Shortcut(ctx, "ctrl+v"); err != nil {
				return err
			}
			pasted = true
			return nil
		})
		if pasted {
			if err != nil {
				e.log.Warn("Clipboard not restored after paste.", append(t.fields(), zap.Error(err))...)
			}
			return nil
		}
		e.log.Debug("Clipboard paste failed, typing instead.", append(t.fields(), zap.Error(err))...)
	}
	if err := e.input.Type(ctx, value); err != nil {
		return fmt.Errorf("typing value: %w", err)
	}
	return nil
}

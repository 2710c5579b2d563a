package replay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/mocks"
	"github.com/xkilldash9x/autofill-cli/internal/status"
	"github.com/xkilldash9x/autofill-cli/internal/vision"
	"go.uber.org/zap/zaptest"
)

// fakeClock advances instantly on Sleep.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func (c *fakeClock) Total() time.Duration {
	var total time.Duration
	for _, d := range c.Slept() {
		total += d
	}
	return total
}

// fieldRegion lays fields out in a column, 50px apart.
func fieldRegion(i int) schemas.Region {
	return schemas.Region{X: 100, Y: 100 + 50*i, W: 200, H: 30}
}

func clickAt(p schemas.Point, ts float64) schemas.RecordedAction {
	return schemas.RecordedAction{Kind: schemas.ActionClick, Timestamp: ts, X: p.X, Y: p.Y, Button: schemas.ButtonLeft}
}

// clickField clicks the centre of field i at ts.
func clickField(i int, ts float64) schemas.RecordedAction {
	return clickAt(fieldRegion(i).Center(), ts)
}

// newFields builds n simulated fields holding initial text.
func newFields(initial ...string) []*mocks.FormField {
	out := make([]*mocks.FormField, len(initial))
	for i, text := range initial {
		out[i] = &mocks.FormField{Region: fieldRegion(i), Text: text}
	}
	return out
}

type harness struct {
	t     *testing.T
	form  *mocks.Form
	cb    *clipboard.Memory
	clock *fakeClock
	bus   *status.Bus
	vis   vision.Vision
}

func newHarness(t *testing.T, fields ...*mocks.FormField) *harness {
	t.Helper()
	cb := clipboard.NewMemory("operator clipboard")
	form := mocks.NewForm(cb, fields...)
	logger := zaptest.NewLogger(t)
	h := &harness{
		t:     t,
		form:  form,
		cb:    cb,
		clock: newFakeClock(),
		bus:   status.NewBus(logger, 1024),
		vis:   vision.NewClipboardVision(form, cb, nil, logger),
	}
	t.Cleanup(h.bus.Shutdown)
	return h
}

// quickOptions removes every fixed delay.
func quickOptions() Options {
	o := DefaultOptions()
	o.StartDelay = 0
	o.InterRowDelay = 0
	o.RetryPause = 0
	return o
}

func (h *harness) engine(opts Options, extra ...Option) *Engine {
	options := append([]Option{WithClock(h.clock), WithRunID("run-test")}, extra...)
	return New(h.form, h.vis, h.cb, h.bus, zaptest.NewLogger(h.t), opts, options...)
}

// drain collects every message already buffered on ch.
func drain(ch <-chan status.Message) []status.Message {
	var out []status.Message
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func countType(msgs []status.Message, t status.Type) int {
	n := 0
	for _, m := range msgs {
		if m.Type == t {
			n++
		}
	}
	return n
}

func requireClipboard(t *testing.T, cb clipboard.Clipboard, want string) {
	t.Helper()
	got, err := cb.Get()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

package humanoid

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// fakeExecutor records everything a Humanoid asks of it and never sleeps.
// Hooks run with the Humanoid mutex held and must not call back into it.
type fakeExecutor struct {
	mu     sync.Mutex
	mouse  []schemas.MouseEventData
	typed  []string
	keys   []schemas.KeyEventData
	sleeps []time.Duration

	sleepHook func(ctx context.Context, d time.Duration) error
	keyHook   func(ctx context.Context, data schemas.KeyEventData) error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{}
}

func (f *fakeExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if f.sleepHook != nil {
		return f.sleepHook(ctx, d)
	}
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

// DispatchMouseEvent records before checking ctx, so releases sent during
// cleanup of a cancelled click are still visible.
func (f *fakeExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	f.mu.Lock()
	f.mouse = append(f.mouse, data)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeExecutor) SendKeys(ctx context.Context, keys string) error {
	f.mu.Lock()
	f.typed = append(f.typed, keys)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	if f.keyHook != nil {
		return f.keyHook(ctx, data)
	}
	f.mu.Lock()
	f.keys = append(f.keys, data)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeExecutor) mouseEvents(typ schemas.MouseEventType) []schemas.MouseEventData {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []schemas.MouseEventData
	for _, ev := range f.mouse {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

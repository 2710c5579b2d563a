// Package replay drives an automation run: it replays the recorded action
// sequence once per data row and fills the mapped fields.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/config"
	"github.com/xkilldash9x/autofill-cli/internal/datasource"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
	"github.com/xkilldash9x/autofill-cli/internal/mapper"
	"github.com/xkilldash9x/autofill-cli/internal/status"
	"github.com/xkilldash9x/autofill-cli/internal/vision"
	"go.uber.org/zap"
)

// Size of the read-back region around a click that has no field slot.
const (
	defaultFieldWidth  = 200
	defaultFieldHeight = 30
)

// Options tune a run.
type Options struct {
	// Speed multiplies every recorded delay. 0.5 replays twice as fast.
	Speed               float64
	MaxAttempts         int
	Verify              bool
	UseClipboard        bool
	UseImageRecognition bool
	InterRowDelay       time.Duration
	StartDelay          time.Duration
	RetryPause          time.Duration
	Strategy            mapper.Strategy
	Layout              datasource.Layout
	// CheckboxImage, when set, is located and clicked away before each row.
	CheckboxImage []byte
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Speed:         1.0,
		MaxAttempts:   3,
		Verify:        true,
		UseClipboard:  true,
		InterRowDelay: time.Second,
		StartDelay:    5 * time.Second,
		RetryPause:    500 * time.Millisecond,
		Strategy:      mapper.StrategyPlaceholder,
		Layout:        datasource.DefaultLayout(),
	}
}

// OptionsFromConfig extracts run options from the configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	strategy, err := mapper.ParseStrategy(cfg.Mapping)
	if err != nil {
		return Options{}, err
	}
	o := Options{
		Speed:               cfg.SpeedFactor,
		MaxAttempts:         cfg.MaxAttempts,
		Verify:              cfg.VerifyInput,
		UseClipboard:        cfg.UseClipboard,
		UseImageRecognition: cfg.UseImageRecognition,
		InterRowDelay:       cfg.InterRowDelay,
		StartDelay:          cfg.StartDelay,
		RetryPause:          cfg.RetryPause,
		Strategy:            strategy,
		Layout:              datasource.LayoutFromConfig(cfg.Columns),
	}
	if cfg.CheckboxImage != "" {
		img, err := os.ReadFile(cfg.CheckboxImage)
		if err != nil {
			return Options{}, fmt.Errorf("failed to read checkbox image: %w", err)
		}
		o.CheckboxImage = img
	}
	return o, o.Validate()
}

func (o Options) Validate() error {
	if o.Speed <= 0 {
		return fmt.Errorf("speed factor must be positive, got %v", o.Speed)
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", o.MaxAttempts)
	}
	if o.InterRowDelay < 0 || o.StartDelay < 0 || o.RetryPause < 0 {
		return errors.New("delays must not be negative")
	}
	_, err := mapper.ParseStrategy(string(o.Strategy))
	return err
}

// Hooks are called synchronously by the worker.
type Hooks struct {
	RowCompleted func(row schemas.DataRow)
	RowSkipped   func(index int, err error)
}

// Engine runs one automation run. It is not reusable.
type Engine struct {
	input  humanoid.Controller
	vision vision.Vision
	cb     clipboard.Clipboard
	bus    *status.Bus
	log    *zap.Logger
	clock  Clock
	gate   *Gate
	hooks  Hooks
	slots  []schemas.FieldSlot
	runID  string

	slotByAction map[int]schemas.FieldSlot
	tracker      *mapper.ChangeTracker

	mu      sync.Mutex
	opts    Options
	state   schemas.RunState
	mapping mapper.Mapping
	mapped  bool
	started bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithGate shares a pause/stop gate with the caller.
func WithGate(g *Gate) Option { return func(e *Engine) { e.gate = g } }

// WithHooks installs row callbacks.
func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

// WithSlots supplies saved field definitions.
func WithSlots(slots []schemas.FieldSlot) Option {
	return func(e *Engine) { e.slots = slots }
}

// WithRunID tags status messages and state with id.
func WithRunID(id string) Option { return func(e *Engine) { e.runID = id } }

// New creates an engine. bus may be nil.
func New(input humanoid.Controller, vis vision.Vision, cb clipboard.Clipboard, bus *status.Bus, logger *zap.Logger, opts Options, options ...Option) *Engine {
	e := &Engine{
		input:   input,
		vision:  vis,
		cb:      cb,
		bus:     bus,
		log:     logger.Named("replay"),
		clock:   realClock{},
		gate:    NewGate(),
		opts:    opts,
		tracker: mapper.NewChangeTracker(),
	}
	for _, o := range options {
		o(e)
	}
	e.state = schemas.RunState{RunID: e.runID, Status: schemas.StatusReady}
	return e
}

// Pause asks the worker to block at the next action or row boundary.
func (e *Engine) Pause() bool { return e.gate.Pause() }

// Resume releases a paused worker.
func (e *Engine) Resume() bool { return e.gate.Resume() }

// TogglePause flips between paused and running and returns the new paused state.
func (e *Engine) TogglePause() bool { return e.gate.Toggle() }

// Stop asks the worker to end the run at the next boundary. A field being
// filled is finished first.
func (e *Engine) Stop() { e.gate.Stop() }

// SetSpeed changes the speed factor of a live run.
func (e *Engine) SetSpeed(f float64) error {
	if f <= 0 {
		return fmt.Errorf("speed factor must be positive, got %v", f)
	}
	e.mu.Lock()
	e.opts.Speed = f
	e.mu.Unlock()
	e.log.Info("Speed factor changed.", zap.Float64("speed", f))
	return nil
}

// State returns a snapshot of the run state.
func (e *Engine) State() schemas.RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Mapping returns the action to column mapping in use, and false before it is known.
func (e *Engine) Mapping() (mapper.Mapping, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mapped {
		return mapper.Mapping{}, false
	}
	return e.mapping.Clone(), true
}

func (e *Engine) options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

func (e *Engine) update(fn func(s *schemas.RunState)) {
	e.mu.Lock()
	fn(&e.state)
	e.mu.Unlock()
}

func (e *Engine) setMapping(m mapper.Mapping) {
	e.mu.Lock()
	e.mapping = m
	e.mapped = true
	e.mu.Unlock()
}

func (e *Engine) publish(t status.Type, row int, text string, err error) {
	if e.bus == nil {
		return
	}
	msg := status.Message{Type: t, RunID: e.runID, Row: row, Text: text}
	if err != nil {
		msg.Err = err.Error()
	}
	e.bus.Publish(msg)
}

// Run replays seq over the rows of src selected by mode. It returns nil when
// a bounded run completes, an error wrapping ErrStopped when stopped, and any
// other error when the run failed.
func (e *Engine) Run(ctx context.Context, seq schemas.ActionSequence, src datasource.Provider, mode RunMode) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine has already run")
	}
	e.started = true
	e.mu.Unlock()

	err := e.prepare(seq, src, mode)
	if err == nil {
		e.update(func(s *schemas.RunState) {
			s.Status = schemas.StatusRunning
			s.Mode = mode.Kind()
			s.TotalRows = src.Len()
			s.StartedAt = e.clock.Now()
		})
		e.log.Info("Run started.",
			zap.String("run_id", e.runID),
			zap.String("mode", string(mode.Kind())),
			zap.Int("rows", src.Len()),
			zap.Int("actions", len(seq)))
		e.publish(status.TypeRunStarted, -1, fmt.Sprintf("%d rows, %d actions", src.Len(), len(seq)), nil)
		err = e.loop(ctx, seq, src, mode)
	}
	return e.finish(ctx, err)
}

func (e *Engine) prepare(seq schemas.ActionSequence, src datasource.Provider, mode RunMode) error {
	opts := e.options()
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := seq.Validate(); err != nil {
		return err
	}
	if _, err := mode.first(src.Len()); err != nil {
		return err
	}
	if len(e.slots) > 0 {
		e.slotByAction = mapper.MatchSlots(seq, e.slots)
	}
	switch opts.Strategy {
	case mapper.StrategyPositional:
		e.setMapping(mapper.Positional(len(seq)))
	case mapper.StrategySlots:
		if len(e.slots) == 0 {
			return errors.New("slot mapping needs saved field definitions")
		}
		e.setMapping(mapper.FromSlots(seq, e.slots, opts.Layout, src.Width()))
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, err error) error {
	final := schemas.StatusCompleted
	msgType := status.TypeCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrStopped):
		final, msgType, err = schemas.StatusStopped, status.TypeStopped, ErrStopped
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		final, msgType = schemas.StatusStopped, status.TypeStopped
		err = fmt.Errorf("%w: %w", ErrStopped, err)
	default:
		final, msgType = schemas.StatusError, status.TypeError
	}

	e.update(func(s *schemas.RunState) {
		s.Status = final
		s.FinishedAt = e.clock.Now()
		if final == schemas.StatusError {
			s.Err = err.Error()
		}
	})
	row := e.State().CurrentRow
	switch final {
	case schemas.StatusError:
		e.log.Error("Run failed.", zap.String("run_id", e.runID), zap.Int("row", row), zap.Error(err))
		e.publish(msgType, row, "run failed", err)
	default:
		e.log.Info("Run finished.", zap.String("run_id", e.runID), zap.String("status", string(final)), zap.Int("row", row))
		e.publish(msgType, row, string(final), nil)
	}
	return err
}

func (e *Engine) loop(ctx context.Context, seq schemas.ActionSequence, src datasource.Provider, mode RunMode) error {
	n := src.Len()
	row, _ := mode.first(n)

	if err := e.countdown(ctx); err != nil {
		return err
	}
	for {
		if _, err := e.wait(ctx, row); err != nil {
			return err
		}
		e.update(func(s *schemas.RunState) { s.CurrentRow = row })

		data, err := src.Row(ctx, row)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			e.log.Warn("Skipping unreadable row.", zap.Int("row", row), zap.Error(err))
			e.publish(status.TypeRowSkipped, row, "unreadable row", err)
			if e.hooks.RowSkipped != nil {
				e.hooks.RowSkipped(row, err)
			}
		default:
			data = datasource.Expand(data, e.options().Layout)
			e.publish(status.TypeRowStarted, row, "", nil)
			if err := e.resetCheckboxes(ctx, row); err != nil {
				return err
			}
			if err := e.replayRow(ctx, seq, data); err != nil {
				return err
			}
			e.log.Info("Row completed.", zap.Int("row", row))
			e.publish(status.TypeRowCompleted, row, "", nil)
			if e.hooks.RowCompleted != nil {
				e.hooks.RowCompleted(data)
			}
		}

		next, wrapped, ok := mode.next(row, n)
		if !ok {
			return nil
		}
		if err := e.sleep(ctx, e.options().InterRowDelay); err != nil {
			return err
		}
		if wrapped {
			e.update(func(s *schemas.RunState) { s.Pass++ })
			e.log.Info("Wrapping to first row.", zap.Int("pass", e.State().Pass))
		}
		row = next
	}
}

func (e *Engine) countdown(ctx context.Context) error {
	remaining := e.options().StartDelay
	for remaining > 0 {
		secs := int((remaining + time.Second - 1) / time.Second)
		e.publish(status.TypeCountdown, -1, fmt.Sprintf("starting in %d", secs), nil)
		step := min(remaining, time.Second)
		if err := e.sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return nil
}

// replayRow replays every action against one expanded row.
func (e *Engine) replayRow(ctx context.Context, seq schemas.ActionSequence, data schemas.DataRow) error {
	if _, ok := e.Mapping(); !ok {
		if err := e.discover(ctx, seq, data); err != nil {
			return err
		}
	}
	mapping, _ := e.Mapping()
	// Field work is never cut short by cancellation.
	fieldCtx := context.WithoutCancel(ctx)

	start := e.clock.Now()
	var paused time.Duration
	for i, a := range seq {
		due := time.Duration(float64(seq.Offset(i)) * e.options().Speed)
		elapsed := e.clock.Now().Sub(start) - paused
		if err := e.sleep(ctx, due-elapsed); err != nil {
			return err
		}
		p, err := e.wait(ctx, data.Index)
		paused += p
		if err != nil {
			return err
		}

		t := e.target(ctx, data.Index, i, a)
		if err := e.input.Click(ctx, t.point, 1); err != nil {
			return fmt.Errorf("row %d action %d: click: %w", data.Index, i, err)
		}
		col, ok := mapping.Lookup(i)
		if !ok {
			continue
		}
		value := data.Value(col)
		if value == "" {
			continue
		}
		t.column = col
		e.observe(fieldCtx, t)
		if err := e.fill(fieldCtx, t, value); err != nil {
			return err
		}
		e.tracker.Record(col, value)
	}
	return nil
}

// target resolves where action i's field is for this row.
func (e *Engine) target(ctx context.Context, row, i int, a schemas.RecordedAction) target {
	t := target{
		row:    row,
		action: i,
		column: -1,
		point:  a.Point(),
		region: schemas.RegionAround(a.Point(), defaultFieldWidth, defaultFieldHeight),
	}
	slot, ok := e.slotByAction[i]
	if !ok {
		return t
	}
	t.region = slot.Region
	if !e.options().UseImageRecognition {
		return t
	}
	p, found, err := vision.LocateSlot(ctx, e.vision, slot)
	if err != nil {
		e.log.Warn("Locating field failed, using recorded position.", zap.String("field", slot.Name), zap.Error(err))
		return t
	}
	if found {
		t.point = p
		center := schemas.Point{X: p.X - slot.ClickOffset.X, Y: p.Y - slot.ClickOffset.Y}
		t.region = schemas.RegionAround(center, slot.Region.W, slot.Region.H)
	}
	return t
}

// discover reads the placeholder of every action's field once and freezes
// the resulting mapping for the rest of the run.
func (e *Engine) discover(ctx context.Context, seq schemas.ActionSequence, data schemas.DataRow) error {
	d := mapper.NewDiscoverer(e.options().Layout, data.Width)
	for i, a := range seq {
		if _, err := e.wait(ctx, data.Index); err != nil {
			return err
		}
		t := e.target(ctx, data.Index, i, a)
		text, err := e.vision.ReadText(ctx, t.region)
		if errors.Is(err, vision.ErrNotText) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading placeholder of action %d: %w", i, err)
		}
		if col, ok := d.Observe(i, text); ok {
			e.log.Debug("Placeholder matched.", zap.Int("action", i), zap.String("text", text), zap.Int("column", col))
		}
	}
	m := d.Freeze()
	e.setMapping(m)
	e.log.Info("Field mapping discovered.", zap.Stringer("mapping", m))
	e.publish(status.TypeMappingDiscovered, data.Index, m.String(), nil)
	if m.Len() == 0 {
		e.publish(status.TypeWarning, data.Index, "no placeholder fields found", nil)
	}
	return nil
}

// observe compares a field's content with the previous row's value. The
// outcome is only logged.
func (e *Engine) observe(ctx context.Context, t target) {
	if !e.options().Verify {
		return
	}
	current, err := e.vision.ReadText(ctx, t.region)
	if err != nil {
		return
	}
	switch obs := e.tracker.Compare(t.column, strings.TrimSpace(current)); obs {
	case mapper.ObservationDiverged:
		e.log.Info("Field changed since previous row.", append(t.fields(), zap.String("current", current))...)
	default:
		e.log.Debug("Field content before overwrite.", append(t.fields(), zap.Stringer("observation", obs))...)
	}
}

// wait blocks at a boundary while the run is paused and returns how long it
// was paused.
func (e *Engine) wait(ctx context.Context, row int) (time.Duration, error) {
	before := e.clock.Now()
	blocked, err := e.gate.Wait(ctx, func() {
		e.update(func(s *schemas.RunState) { s.Status = schemas.StatusPaused })
		e.log.Info("Run paused.", zap.Int("row", row))
		e.publish(status.TypePaused, row, "", nil)
	})
	if !blocked {
		return 0, err
	}
	if err == nil {
		e.update(func(s *schemas.RunState) { s.Status = schemas.StatusRunning })
		e.log.Info("Run resumed.", zap.Int("row", row))
		e.publish(status.TypeResumed, row, "", nil)
	}
	return e.clock.Now().Sub(before), err
}

// sleep waits for d, returning early with ErrStopped on stop.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.gate.Stopped() {
		return ErrStopped
	}
	if d <= 0 {
		return nil
	}
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.gate.Done():
			cancel()
		case <-sctx.Done():
		}
	}()
	if err := e.clock.Sleep(sctx, d); err != nil {
		if e.gate.Stopped() {
			return ErrStopped
		}
		return err
	}
	return nil
}

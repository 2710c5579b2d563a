// Package controller owns the recording and run lifecycles and keeps them
// mutually exclusive.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/datasource"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
	"github.com/xkilldash9x/autofill-cli/internal/recorder"
	"github.com/xkilldash9x/autofill-cli/internal/replay"
	"github.com/xkilldash9x/autofill-cli/internal/status"
	"github.com/xkilldash9x/autofill-cli/internal/store"
	"github.com/xkilldash9x/autofill-cli/internal/vision"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBusy is returned when recording and replay would overlap, or a
	// second run is started.
	ErrBusy = errors.New("controller busy")
	// ErrNoSequence is returned by Start before anything was recorded or loaded.
	ErrNoSequence = errors.New("no action sequence loaded")
	// ErrNotRunning is returned by run controls when no run is active.
	ErrNotRunning = errors.New("no run in progress")
)

// Capabilities are the external collaborators of a run.
type Capabilities struct {
	Input     humanoid.Controller
	Vision    vision.Vision
	Clipboard clipboard.Clipboard
	Pointer   recorder.PointerSource
}

// RunOptions select what a run replays over.
type RunOptions struct {
	Source datasource.Provider
	Mode   replay.RunMode
	// Speed overrides the configured speed factor when positive.
	Speed float64
	Hooks replay.Hooks
}

// Controller is the single owner of recorder and engine state.
type Controller struct {
	caps   Capabilities
	store  store.ActionStore
	bus    *status.Bus
	log    *zap.Logger
	rec    *recorder.Recorder
	extras []replay.Option

	mu     sync.Mutex
	opts   replay.Options
	seq    schemas.ActionSequence
	slots  []schemas.FieldSlot
	engine *replay.Engine
	group  *errgroup.Group
}

// Option configures a Controller.
type Option func(*Controller)

// WithEngineOptions passes extra options to every engine the controller creates.
func WithEngineOptions(opts ...replay.Option) Option {
	return func(c *Controller) { c.extras = append(c.extras, opts...) }
}

// New creates an idle controller. Recordings are saved to st. bus may be
// nil, in which case nothing is published.
func New(caps Capabilities, st store.ActionStore, bus *status.Bus, logger *zap.Logger, opts replay.Options, options ...Option) *Controller {
	c := &Controller{
		caps:  caps,
		store: st,
		bus:   bus,
		log:   logger.Named("controller"),
		opts:  opts,
	}
	c.rec = recorder.New(caps.Pointer, st, logger)
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Controller) publish(t status.Type, text string, err error) {
	if c.bus == nil {
		return
	}
	msg := status.Message{Type: t, Row: -1, Text: text}
	if err != nil {
		msg.Err = err.Error()
	}
	c.bus.Publish(msg)
}

// running reports whether a run is active. Caller holds c.mu.
func (c *Controller) running() bool {
	return c.engine != nil && !c.engine.State().Status.Terminal()
}

// StartRecording begins capturing clicks. It fails with ErrBusy during a run.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running() {
		return ErrBusy
	}
	if err := c.rec.Start(ctx); err != nil {
		return err
	}
	c.publish(status.TypeRecordingStarted, "", nil)
	return nil
}

// StopRecording ends the recording, persists it and makes it the current
// sequence. On a persistence failure the sequence is still kept in memory.
func (c *Controller) StopRecording(ctx context.Context) (schemas.ActionSequence, error) {
	seq, err := c.rec.Stop(ctx)
	if errors.Is(err, recorder.ErrNotRecording) {
		return nil, err
	}
	c.mu.Lock()
	c.seq = seq
	c.mu.Unlock()
	if err != nil {
		c.log.Error("Recording could not be saved.", zap.Error(err))
		c.publish(status.TypeError, "recording not saved", err)
		return seq, err
	}
	c.publish(status.TypeRecordingStopped, fmt.Sprintf("%d actions", len(seq)), nil)
	return seq, nil
}

// Recording reports whether clicks are being captured.
func (c *Controller) Recording() bool { return c.rec.Recording() }

// LoadSequence replaces the current sequence with the stored one.
func (c *Controller) LoadSequence(ctx context.Context) error {
	c.mu.Lock()
	if c.running() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	seq, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading action sequence: %w", err)
	}
	c.SetSequence(seq)
	c.log.Info("Action sequence loaded.", zap.Int("actions", len(seq)))
	return nil
}

// SetSequence replaces the current sequence.
func (c *Controller) SetSequence(seq schemas.ActionSequence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = seq.Clone()
}

// Sequence returns a copy of the current sequence.
func (c *Controller) Sequence() schemas.ActionSequence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq.Clone()
}

// SetFields installs the field slots used by slot mapping and image recognition.
func (c *Controller) SetFields(slots []schemas.FieldSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = append([]schemas.FieldSlot(nil), slots...)
}

// Start launches a run in the background and returns its ID.
func (c *Controller) Start(ctx context.Context, ro RunOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.Recording() || c.running() {
		return "", ErrBusy
	}
	if len(c.seq) == 0 {
		return "", ErrNoSequence
	}
	if ro.Source == nil {
		return "", errors.New("run needs a data source")
	}
	if ro.Mode == nil {
		ro.Mode = replay.Bounded{}
	}
	opts := c.opts
	if ro.Speed > 0 {
		opts.Speed = ro.Speed
	}

	id := uuid.NewString()
	options := append([]replay.Option{
		replay.WithRunID(id),
		replay.WithSlots(c.slots),
		replay.WithHooks(ro.Hooks),
	}, c.extras...)
	eng := replay.New(c.caps.Input, c.caps.Vision, c.caps.Clipboard, c.bus, c.log, opts, options...)
	seq := c.seq.Clone()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx, seq, ro.Source, ro.Mode)
	})
	c.engine = eng
	c.group = g
	c.log.Info("Run launched.", zap.String("run_id", id))
	return id, nil
}

func (c *Controller) current() (*replay.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running() {
		return nil, ErrNotRunning
	}
	return c.engine, nil
}

// Pause asks the run to pause at its next boundary.
func (c *Controller) Pause() error {
	eng, err := c.current()
	if err != nil {
		return err
	}
	eng.Pause()
	return nil
}

// Resume continues a paused run.
func (c *Controller) Resume() error {
	eng, err := c.current()
	if err != nil {
		return err
	}
	eng.Resume()
	return nil
}

// TogglePause pauses a running run or resumes a paused one. It returns
// whether the run is now paused.
func (c *Controller) TogglePause() (bool, error) {
	eng, err := c.current()
	if err != nil {
		return false, err
	}
	return eng.TogglePause(), nil
}

// Stop asks the run to end at its next boundary.
func (c *Controller) Stop() error {
	eng, err := c.current()
	if err != nil {
		return err
	}
	eng.Stop()
	return nil
}

// Wait blocks until the current run ends and returns its error. A stopped
// run yields replay.ErrStopped.
func (c *Controller) Wait() error {
	c.mu.Lock()
	g := c.group
	c.mu.Unlock()
	if g == nil {
		return ErrNotRunning
	}
	return g.Wait()
}

// SetSpeed changes the speed factor for the live run and later runs.
func (c *Controller) SetSpeed(f float64) error {
	if f <= 0 {
		return fmt.Errorf("speed factor must be positive, got %v", f)
	}
	c.mu.Lock()
	c.opts.Speed = f
	eng := c.engine
	c.mu.Unlock()
	if eng != nil {
		return eng.SetSpeed(f)
	}
	return nil
}

// State returns a snapshot of the current or last run.
func (c *Controller) State() schemas.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return c.engine.State()
	}
	if len(c.seq) == 0 {
		return schemas.RunState{Status: schemas.StatusIdle}
	}
	return schemas.RunState{Status: schemas.StatusReady}
}

// Subscribe returns status messages of the given types, or all types.
// Without a bus the channel is already closed.
func (c *Controller) Subscribe(types ...status.Type) (<-chan Message, func()) {
	if c.bus == nil {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	return c.bus.Subscribe(types...)
}

// Message is re-exported for subscribers.
type Message = status.Message

// Close stops any run and recording and waits for the worker.
func (c *Controller) Close(ctx context.Context) error {
	if eng, err := c.current(); err == nil {
		eng.Stop()
	}
	var errs []error
	if c.rec.Recording() {
		if _, err := c.rec.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Wait(); err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, replay.ErrStopped) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

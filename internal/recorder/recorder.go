// Package recorder captures the operator's timed pointer clicks.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRecording is returned by Start while a recording is in progress.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned by Stop when nothing is being recorded.
	ErrNotRecording = errors.New("not recording")
	// ErrRecordingIO wraps a failure to persist the finished recording.
	ErrRecordingIO = errors.New("failed to persist recording")
)

// PointerEvent is one global pointer button transition.
type PointerEvent struct {
	X, Y    int
	Button  schemas.MouseButton
	Pressed bool
}

// PointerSource delivers global pointer events to handler until the returned
// unsubscribe func is called. The handler may be called from any goroutine.
type PointerSource interface {
	Subscribe(ctx context.Context, handler func(PointerEvent)) (func(), error)
}

// ActionSaver receives the finished recording.
type ActionSaver interface {
	Save(ctx context.Context, seq schemas.ActionSequence) error
}

// Recorder turns pointer presses into a timestamped action sequence.
type Recorder struct {
	source PointerSource
	saver  ActionSaver
	log    *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	recording   bool
	seq         schemas.ActionSequence
	unsubscribe func()
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New creates an idle recorder.
func New(source PointerSource, saver ActionSaver, logger *zap.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		source: source,
		saver:  saver,
		log:    logger.Named("recorder"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start clears any previous recording and begins capturing clicks.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.recording = true
	r.seq = nil
	r.mu.Unlock()

	unsubscribe, err := r.source.Subscribe(ctx, r.OnEvent)
	if err != nil {
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("failed to subscribe to pointer events: %w", err)
	}

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
	r.log.Info("Recording started")
	return nil
}

// OnEvent appends a click for every press delivered while recording.
// Releases and events outside a recording are ignored.
func (r *Recorder) OnEvent(ev PointerEvent) {
	if !ev.Pressed {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	button := ev.Button
	if !button.Valid() {
		button = schemas.ButtonLeft
	}
	t := r.now()
	r.seq = append(r.seq, schemas.RecordedAction{
		Kind:      schemas.ActionClick,
		Timestamp: float64(t.Unix()) + float64(t.Nanosecond())/1e9,
		X:         ev.X,
		Y:         ev.Y,
		Button:    button,
	})
	r.log.Debug("Click recorded", zap.Int("x", ev.X), zap.Int("y", ev.Y), zap.Int("index", len(r.seq)-1))
}

// Stop ends the recording and hands the sequence to the saver. The recorder
// is idle afterwards even if saving fails; the sequence stays available via
// Sequence and the failure wraps ErrRecordingIO.
func (r *Recorder) Stop(ctx context.Context) (schemas.ActionSequence, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	seq := r.seq.Clone()
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.log.Info("Recording stopped", zap.Int("actions", len(seq)))

	if r.saver != nil {
		if err := r.saver.Save(ctx, seq); err != nil {
			r.log.Error("Failed to save recording", zap.Error(err))
			return seq, fmt.Errorf("%w: %w", ErrRecordingIO, err)
		}
	}
	return seq, nil
}

// Recording reports whether clicks are being captured.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Len is the number of clicks captured so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seq)
}

// Sequence returns a copy of the current or last recording.
func (r *Recorder) Sequence() schemas.ActionSequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq.Clone()
}

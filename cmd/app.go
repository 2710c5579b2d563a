package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/config"
	"github.com/xkilldash9x/autofill-cli/internal/controller"
	"github.com/xkilldash9x/autofill-cli/internal/driver/cdp"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
	"github.com/xkilldash9x/autofill-cli/internal/replay"
	"github.com/xkilldash9x/autofill-cli/internal/status"
	"github.com/xkilldash9x/autofill-cli/internal/store"
	"github.com/xkilldash9x/autofill-cli/internal/vision"
)

const shutdownTimeout = 15 * time.Second

// openActionStore returns the configured sequence store and a cleanup func.
// It is a variable so command tests can substitute an in-memory store.
var openActionStore = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.ActionStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := store.NewPool(ctx, cfg.Store.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st, err := store.NewPostgresActionStore(ctx, pool, cfg.Store.Postgres.Key, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		cleanup := func() {
			pool.Close()
			logger.Debug("Database connection pool closed.")
		}
		return st, cleanup, nil
	default:
		st, err := store.NewFileActionStore(cfg.ActionsFile, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

// newClipboard picks the OS clipboard when requested and reachable, and an
// in-process one otherwise.
func newClipboard(cfg config.BrowserConfig, logger *zap.Logger) clipboard.Clipboard {
	if cfg.SystemClipboard {
		cb, err := clipboard.NewSystem()
		if err == nil {
			return cb
		}
		logger.Warn("System clipboard unavailable, using in-process clipboard.", zap.Error(err))
	}
	return clipboard.NewMemory("")
}

// newVision picks how fields are read back. The clipboard read-back works on
// any widget that supports select-all and copy; the DOM read-back only sees
// inputs, textareas and editable elements.
func newVision(cfg *config.Config, session *cdp.Session, input humanoid.Controller, cb clipboard.Clipboard, logger *zap.Logger) vision.Vision {
	if cfg.Vision == config.VisionClipboard {
		return vision.NewClipboardVision(input, cb, vision.NewScreenLocator(session), logger)
	}
	return cdp.NewDOMVision(session, logger)
}

// app holds the long-lived components a record or run session needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *cdp.Session
	bus     *status.Bus
	ctrl    *controller.Controller
	cleanup func()
}

// newApp opens the browser and assembles the controller around it.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	opts, err := replay.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	st, cleanup, err := openActionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	session, err := cdp.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		cleanup()
		return nil, err
	}

	cb := newClipboard(cfg.Browser, logger)
	input := humanoid.New(cfg.Humanoid, logger, cdp.NewExecutor(session, cb, logger))
	bus := status.NewBus(logger, cfg.Status.BufferSize)
	caps := controller.Capabilities{
		Input:     input,
		Vision:    newVision(cfg, session, input, cb, logger),
		Clipboard: cb,
		Pointer:   cdp.NewPointerSource(session, logger),
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		session: session,
		bus:     bus,
		ctrl:    controller.New(caps, st, bus, logger, opts),
		cleanup: cleanup,
	}, nil
}

// loadFields hands saved field definitions to the controller. Missing
// definitions only matter when the run depends on them.
func (a *app) loadFields(ctx context.Context) error {
	needed := a.cfg.Mapping == config.MappingSlots || a.cfg.UseImageRecognition
	fs, err := store.NewFieldStore(a.cfg.FieldsFile, a.logger)
	if err != nil {
		return err
	}
	slots, err := fs.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound) && !needed:
		return nil
	case err != nil:
		return fmt.Errorf("failed to load field definitions from %s: %w", fs.Path(), err)
	}
	a.ctrl.SetFields(slots)
	a.logger.Info("Field definitions loaded.", zap.Int("count", len(slots)), zap.String("path", fs.Path()))
	return nil
}

// Shutdown stops whatever is running and releases the browser and store.
func (a *app) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.ctrl.Close(ctx); err != nil {
		a.logger.Warn("Error during controller shutdown.", zap.Error(err))
	}
	a.bus.Shutdown()
	a.session.Close()
	a.cleanup()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/autofill-cli/internal/config"
	"github.com/xkilldash9x/autofill-cli/internal/controller"
	"github.com/xkilldash9x/autofill-cli/internal/datasource"
	"github.com/xkilldash9x/autofill-cli/internal/observability"
	"github.com/xkilldash9x/autofill-cli/internal/replay"
	"github.com/xkilldash9x/autofill-cli/internal/status"
)

// runSession is the part of the controller the run command drives.
type runSession interface {
	Start(ctx context.Context, ro controller.RunOptions) (string, error)
	Subscribe(types ...status.Type) (<-chan status.Message, func())
	TogglePause() (bool, error)
	Stop() error
	Wait() error
	SetSpeed(f float64) error
}

// runFlags maps each run flag to the config key it overrides.
var runFlags = map[string]string{
	"excel":     "excelFile",
	"start-row": "startRow",
	"speed":     "speedFactor",
	"mode":      "mode",
	"mapping":   "mapping",
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replays the recorded clicks for every row of the data file",
		Long: `Replays the saved click sequence once per data row, filling each clicked
field with the row's value.

While running, type a command and press Enter:
  p   pause or resume
  s   stop after the current field`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			v, err := getViperFromContext(ctx)
			if err != nil {
				return err
			}
			if err := bindRunFlags(cmd, v); err != nil {
				return err
			}
			// Re-read now that flag overrides are bound.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if cfg.ExcelFile == "" {
				return errors.New("no data file: set excelFile in the config or pass --excel")
			}

			src, err := datasource.Open(cfg.ExcelFile)
			if err != nil {
				return err
			}
			mode, err := replay.ModeFor(cfg.Mode, cfg.StartRow)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer a.Shutdown()

			if err := a.ctrl.LoadSequence(ctx); err != nil {
				return fmt.Errorf("no recording to replay (run 'autofill record' first): %w", err)
			}
			if err := a.loadFields(ctx); err != nil {
				return err
			}

			if v.ConfigFileUsed() != "" {
				v.OnConfigChange(func(e fsnotify.Event) {
					applyReload(v, a.ctrl, logger)
				})
				v.WatchConfig()
			}

			logger.Info("Starting run.",
				zap.String("data", cfg.ExcelFile),
				zap.Int("rows", src.Len()),
				zap.String("mode", cfg.Mode),
				zap.String("mapping", cfg.Mapping),
				zap.Float64("speed", cfg.SpeedFactor),
			)
			return runReplay(ctx, a.ctrl, controller.RunOptions{Source: src, Mode: mode}, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	runCmd.Flags().String("excel", "", "Data file (.xlsx or .csv). (Overrides config)")
	runCmd.Flags().Int("start-row", 0, "0-based data row to start from. (Overrides config)")
	runCmd.Flags().Float64("speed", 1.0, "Delay multiplier; 0.5 replays twice as fast. (Overrides config)")
	runCmd.Flags().String("mode", config.ModeBounded, "Run mode: bounded or continuous. (Overrides config)")
	runCmd.Flags().String("mapping", config.MappingPlaceholder, "Field mapping: positional, placeholder or slots. (Overrides config)")
	return runCmd
}

func bindRunFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range runFlags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// speedSetter is satisfied by the controller.
type speedSetter interface {
	SetSpeed(f float64) error
}

// applyReload pushes a changed speed factor and log level into the live run.
func applyReload(v *viper.Viper, run speedSetter, logger *zap.Logger) {
	if speed := v.GetFloat64("speedFactor"); speed > 0 {
		if err := run.SetSpeed(speed); err != nil && !errors.Is(err, controller.ErrNotRunning) {
			logger.Warn("Could not apply new speed factor.", zap.Error(err))
		} else if err == nil {
			logger.Info("Speed factor reloaded.", zap.Float64("speed", speed))
		}
	} else {
		logger.Warn("Ignoring invalid speedFactor in reloaded config.", zap.Float64("speed", speed))
	}
	if level := v.GetString("logger.level"); level != "" && level != observability.Level().String() {
		if err := observability.SetLevel(level); err != nil {
			logger.Warn("Ignoring invalid log level in reloaded config.", zap.Error(err))
		}
	}
}

// runReplay starts the run and serves status output and operator commands
// until it ends. A stop, by command or by ctx, is not an error.
func runReplay(ctx context.Context, run runSession, ro controller.RunOptions, in io.Reader, out io.Writer, logger *zap.Logger) error {
	out = &lockedWriter{w: out}
	msgs, unsubscribe := run.Subscribe()
	defer unsubscribe()

	id, err := run.Start(ctx, ro)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	fmt.Fprintf(out, "Run %s started. Commands: p = pause/resume, s = stop.\n", id)

	done := make(chan struct{})
	var runErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		runErr = run.Wait()
		close(done)
		return nil
	})
	g.Go(func() error {
		printStatus(out, msgs, done)
		return nil
	})
	g.Go(func() error {
		serveCommands(run, readLines(in), done, out, logger)
		return nil
	})
	_ = g.Wait()

	switch {
	case runErr == nil:
		fmt.Fprintln(out, "Run completed.")
		return nil
	case errors.Is(runErr, replay.ErrStopped):
		fmt.Fprintln(out, "Run stopped.")
		return nil
	default:
		return runErr
	}
}

// lockedWriter serialises writes from the status printer and the command loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// printStatus writes status messages until done, then flushes what is buffered.
func printStatus(out io.Writer, msgs <-chan status.Message, done <-chan struct{}) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			fmt.Fprintln(out, formatMessage(msg))
		case <-done:
			for {
				select {
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					fmt.Fprintln(out, formatMessage(msg))
				default:
					return
				}
			}
		}
	}
}

func formatMessage(msg status.Message) string {
	var b strings.Builder
	b.WriteString(msg.Timestamp.Format("15:04:05"))
	b.WriteString(" ")
	if msg.Row >= 0 {
		fmt.Fprintf(&b, "[row %d] ", msg.Row)
	}
	b.WriteString(string(msg.Type))
	if msg.Text != "" {
		b.WriteString(": ")
		b.WriteString(msg.Text)
	}
	if msg.Err != "" {
		b.WriteString(" (")
		b.WriteString(msg.Err)
		b.WriteString(")")
	}
	return b.String()
}

// serveCommands applies operator commands until done. EOF on the input only
// ends command handling, not the run.
func serveCommands(run runSession, lines <-chan string, done <-chan struct{}, out io.Writer, logger *zap.Logger) {
	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := handleCommand(run, line, out); err != nil {
				logger.Debug("Command not applied.", zap.String("command", line), zap.Error(err))
				fmt.Fprintln(out, err)
			}
		}
	}
}

// handleCommand applies one operator command.
func handleCommand(run runSession, line string, out io.Writer) error {
	switch strings.ToLower(line) {
	case "":
		return nil
	case "p", "pause", "resume":
		paused, err := run.TogglePause()
		if err != nil {
			return err
		}
		if paused {
			fmt.Fprintln(out, "Paused. Type p to resume.")
		} else {
			fmt.Fprintln(out, "Resumed.")
		}
		return nil
	case "s", "stop":
		return run.Stop()
	default:
		return fmt.Errorf("unknown command %q (p = pause/resume, s = stop)", line)
	}
}

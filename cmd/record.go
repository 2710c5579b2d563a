package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/observability"
)

// recordSession is the part of the controller the record command drives.
type recordSession interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (schemas.ActionSequence, error)
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Records the form fields clicked in the browser",
		Long: `Opens the configured form and records every click until Enter is pressed
(or the process is interrupted). The sequence is saved to the configured store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer a.Shutdown()

			return runRecord(ctx, a.ctrl, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}
}

// runRecord records until a line arrives on in, in reaches EOF, or ctx ends.
// The recording is stopped and saved in every case.
func runRecord(ctx context.Context, rec recordSession, in io.Reader, out io.Writer, logger *zap.Logger) error {
	if err := rec.StartRecording(ctx); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	fmt.Fprintln(out, "Recording. Click the form fields in order, then press Enter to stop.")

	select {
	case <-readLines(in):
	case <-ctx.Done():
		logger.Info("Interrupted, saving what was recorded.")
	}

	seq, err := rec.StopRecording(context.WithoutCancel(ctx))
	if err != nil {
		if len(seq) > 0 {
			fmt.Fprintf(out, "Recorded %d clicks but could not save them.\n", len(seq))
		}
		return err
	}
	fmt.Fprintf(out, "Recorded %d clicks over %.1fs.\n", len(seq), seq.Duration().Seconds())
	return nil
}

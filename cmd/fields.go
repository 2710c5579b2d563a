package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/observability"
	"github.com/xkilldash9x/autofill-cli/internal/store"
)

func newFieldsCmd() *cobra.Command {
	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "Manages saved field definitions",
		Long: `Field definitions describe where each form field sits and which data
column it receives. They back the "slots" mapping and image re-location.`,
	}
	fieldsCmd.AddCommand(newFieldsShowCmd(), newFieldsLoadCmd(), newFieldsSaveCmd())
	return fieldsCmd
}

func newFieldsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Lists the saved field definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			fs, err := store.NewFieldStore(cfg.FieldsFile, observability.GetLogger())
			if err != nil {
				return err
			}
			slots, err := fs.Load(ctx)
			if err != nil {
				return err
			}
			return printFields(cmd.OutOrStdout(), slots)
		},
	}
}

func newFieldsLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Imports field definitions from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			n, err := copyFields(cmd, args[0], cfg.FieldsFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d field definitions into %s.\n", n, cfg.FieldsFile)
			return nil
		},
	}
}

func newFieldsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Exports the saved field definitions to a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			n, err := copyFields(cmd, cfg.FieldsFile, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d field definitions to %s.\n", n, args[0])
			return nil
		},
	}
}

// copyFields reads definitions from src and writes them to dst. The codec of
// each side follows its file extension.
func copyFields(cmd *cobra.Command, src, dst string) (int, error) {
	ctx := cmd.Context()
	logger := observability.GetLogger()
	from, err := store.NewFieldStore(src, logger)
	if err != nil {
		return 0, err
	}
	to, err := store.NewFieldStore(dst, logger)
	if err != nil {
		return 0, err
	}
	slots, err := from.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", from.Path(), err)
	}
	if err := to.Save(ctx, slots); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", to.Path(), err)
	}
	return len(slots), nil
}

func printFields(out io.Writer, slots []schemas.FieldSlot) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPOSITION\tSIZE\tCLICK\tIMAGE")
	for _, s := range slots {
		image := "-"
		if len(s.ReferenceImage) > 0 {
			image = fmt.Sprintf("%dB", len(s.ReferenceImage))
		}
		click := s.ClickPoint()
		fmt.Fprintf(w, "%s\t%s\t%d,%d\t%dx%d\t%d,%d\t%s\n",
			s.Name, s.Type, s.Region.X, s.Region.Y, s.Region.W, s.Region.H, click.X, click.Y, image)
	}
	return w.Flush()
}

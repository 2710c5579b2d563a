package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autofill-cli/internal/config"
	"github.com/xkilldash9x/autofill-cli/internal/observability"
)

type contextKey string

const (
	configKey contextKey = "config"
	viperKey  contextKey = "viper"
)

// NewRootCommand builds a fresh command tree. Every call gets its own viper
// instance, so tests and repeated invocations never share flag state.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "autofill",
		Short: "Records clicks on a form and replays them to fill it from a spreadsheet.",
		Long: `autofill records the fields an operator clicks on a form, then replays
those clicks for every row of an Excel or CSV file, typing the row's values
into the fields it clicked.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "autofill"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting autofill.", zap.String("version", Version), zap.String("config_file", v.ConfigFileUsed()))

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, viperKey, v)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./autofill.json or ./autofill.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newFieldsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); !errors.Is(err, context.Canceled) {
			logger.Error("Command execution failed.", zap.Error(err))
		}
		rootCmd.PrintErrln("Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig points v at the config file and the AUTOFILL_ environment.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("autofill")
	}

	v.SetEnvPrefix("AUTOFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func getViperFromContext(ctx context.Context) (*viper.Viper, error) {
	v, ok := ctx.Value(viperKey).(*viper.Viper)
	if !ok || v == nil {
		return nil, errors.New("configuration not loaded")
	}
	return v, nil
}

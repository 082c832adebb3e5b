package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/config"
	"github.com/sadopc/sumtimer/internal/logging"
	"github.com/sadopc/sumtimer/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool

	loader *config.Loader
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sumtimer",
	Short: "Track time against activities and categories",
	Long: `sumtimer is a personal time tracker. A single live session runs against one
activity; finishing it writes a record. Category and activity totals are kept
in an aggregate that every change updates in the same transaction.

Run without arguments to open the terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		var err error
		if loader, err = config.Load(path); err != nil {
			return err
		}
		cfg := loader.Config()

		// The TUI owns the terminal and serve owns stdout, so both log to a file.
		opts := logging.Options{Level: cfg.LogLevel, Verbose: verbose}
		if cmd == rootCmd || cmd == serveCmd {
			opts.File = cfg.LogPath()
		}
		logger, err = logging.New(opts)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/sumtimer/sumtimer.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	for _, c := range timerCmds {
		rootCmd.AddCommand(c)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openApp opens the configured database for the current command.
func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, loader.Config(), logger, app.Options{})
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	loader.Watch(logger, a.ApplyConfig)
	return tui.Run(ctx, a)
}

package main

import (
	"fmt"

	"github.com/sadopc/sumtimer/internal/config"
	"github.com/spf13/cobra"
)

var settableKeys = map[string]bool{
	config.KeyDataDir:          true,
	config.KeyUserID:           true,
	config.KeyDayStartHour:     true,
	config.KeyWeekStart:        true,
	config.KeyMaxPauseDuration: true,
	config.KeyTickInterval:     true,
	config.KeyLogLevel:         true,
	config.KeyWakeLockCommand:  true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loader.Config()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:               %s\n", loader.Path())
		fmt.Fprintf(out, "data_dir:           %s\n", cfg.DataDir)
		fmt.Fprintf(out, "user_id:            %s\n", cfg.UserID)
		fmt.Fprintf(out, "day_start_hour:     %d\n", cfg.DayStartHour)
		fmt.Fprintf(out, "week_start:         %s\n", cfg.WeekStart)
		fmt.Fprintf(out, "max_pause_duration: %s\n", cfg.MaxPauseDuration)
		fmt.Fprintf(out, "tick_interval:      %s\n", cfg.TickInterval)
		fmt.Fprintf(out, "log_level:          %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "wake_lock_command:  %q\n", cfg.WakeLockCommand)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and write it to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !settableKeys[args[0]] {
			return fmt.Errorf("unknown key %q", args[0])
		}
		if err := loader.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

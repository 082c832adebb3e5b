package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/spf13/cobra"
)

var timerCmds = []*cobra.Command{
	{
		Use:   "status",
		Short: "Show the live session",
		Args:  cobra.NoArgs,
		RunE:  withApp(printStatus),
	},
	{
		Use:   "start <activity>",
		Short: "Start timing an activity, by id or label",
		Long: `Starts a session for the activity. A session already running for another
activity is finished first; one running for the same activity is left alone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			act, err := a.FindActivity(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := a.Timer.Start(ctx, act.ID); err != nil {
				return err
			}
			return printStatus(ctx, cmd, a, nil)
		}),
	},
	timerAction("pause", "Pause the live session", (*ongoing.Timer).Pause),
	timerAction("resume", "Resume a paused session", (*ongoing.Timer).Resume),
	timerAction("reset", "Discard the live session without saving", (*ongoing.Timer).Reset),
	{
		Use:   "finish",
		Short: "Finish the live session and save it as a record",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			rec, err := a.Timer.Finish(ctx)
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Timer is idle; nothing to finish.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d frames).\n",
				time.Duration(rec.Duration)*time.Millisecond, len(rec.Interval.Spans()))
			return nil
		}),
	},
	{
		Use:   "memo <text>",
		Short: "Set the memo of the live session",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			return a.Timer.UpdateMemo(ctx, strings.Join(args, " "))
		}),
	},
}

// withApp opens the app around fn.
func withApp(fn func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, cmd, a, args)
	}
}

func timerAction(use, short string, op func(*ongoing.Timer, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := op(a.Timer, ctx); err != nil {
				return err
			}
			return printStatus(ctx, cmd, a, nil)
		}),
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if snap.State == ongoing.Idle {
		fmt.Fprintln(out, "idle")
		return nil
	}
	fmt.Fprintf(out, "%s  %s / %s  %s\n", snap.State, snap.ActivityName, snap.CategoryName, snap.Elapsed.Truncate(time.Second))
	if snap.State == ongoing.Paused {
		fmt.Fprintf(out, "paused for %s (limit %s)\n", snap.Paused.Truncate(time.Second), snap.MaxPause)
	}
	if snap.Memo != "" {
		fmt.Fprintf(out, "memo: %s\n", snap.Memo)
	}
	return nil
}

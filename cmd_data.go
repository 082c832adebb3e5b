package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/portable"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	recomputeCheck bool
	exportFormat   string
	exportOut      string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the preset categories and activities",
	Long: `Writes the starter categories (Work, Learning, Exercise, ...) and one
activity for each. Does nothing when the account already has any.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		wrote, err := a.Bootstrap(ctx)
		if err != nil {
			return err
		}
		if !wrote {
			fmt.Fprintln(cmd.OutOrStdout(), "Account already has data; presets skipped.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Presets written to %s\n", a.Config().DBPath())
		return nil
	}),
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild category and activity totals from the records",
	Long: `Scans every category, activity and record and replaces the stored totals.
With --check the stored totals are only compared and any drift is listed.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		out := cmd.OutOrStdout()
		if recomputeCheck {
			mismatches, err := a.Cache.Verify(ctx)
			if err != nil {
				return err
			}
			for _, m := range mismatches {
				fmt.Fprintln(out, m)
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d mismatched totals", len(mismatches))
			}
			fmt.Fprintln(out, "Totals match the records.")
			return nil
		}
		c, err := a.Cache.Recompute(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Rebuilt totals for %d categories and %d activities.\n", len(c.Categories), len(c.Activities))
		return nil
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export categories, activities and records",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		d, err := portable.Export(ctx, a.Repos)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		var f *os.File
		if exportOut != "" && exportOut != "-" {
			if f, err = os.Create(exportOut); err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		switch exportFormat {
		case "json":
			err = portable.Write(w, d)
		case "csv":
			err = portable.WriteCSV(w, d, a.Calendar().Location)
		default:
			return fmt.Errorf("unknown format %q (want json or csv)", exportFormat)
		}
		if err != nil {
			return err
		}
		if f != nil {
			if err := f.Close(); err != nil {
				return err
			}
		}
		logger.Info("exported", zap.String("format", exportFormat),
			zap.Int("records", len(d.Records)), zap.String("out", exportOut))
		return nil
	}),
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a JSON export",
	Long: `Reads a portable JSON export (from a file, or stdin when no file or "-" is
given) and adds its categories, activities and records in one transaction.
Nothing is written if any part is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		d, err := portable.Read(r)
		if err != nil {
			return err
		}
		sum, err := portable.Import(ctx, a.Store, a.Repos, d, a.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d categories, %d activities and %d records.\n",
			sum.Categories, sum.Activities, sum.Records)
		return nil
	}),
}

func init() {
	recomputeCmd.Flags().BoolVar(&recomputeCheck, "check", false, "Only compare stored totals with the records")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")
}

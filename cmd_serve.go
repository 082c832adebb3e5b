package main

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"
	mcpserver "github.com/sadopc/sumtimer/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timer as MCP tools over stdio",
	Long: `Runs an MCP server on stdin/stdout. While serving, stale pauses are
finished on every tick and config file edits are applied live.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	loader.Watch(logger, a.ApplyConfig)

	stdio := server.NewStdioServer(mcpserver.New(a))
	stdio.SetErrorLogger(zap.NewStdLog(logger))

	logger.Info("serving", zap.String("version", mcpserver.Version), zap.String("db", a.Config().DBPath()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Closing stdin ends the session and stops the ticker with it.
		defer cancel()
		return stdio.Listen(ctx, os.Stdin, os.Stdout)
	})
	g.Go(func() error {
		if err := a.Timer.Run(ctx, a.Config().TickInterval); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

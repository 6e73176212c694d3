package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/andreyvit/scribe/archive"
)

type commandContext struct {
	dbPath  string
	verbose bool
	store   *archive.Store
}

func (ctx *commandContext) logger() *slog.Logger {
	level := slog.LevelInfo
	if ctx.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (ctx *commandContext) open() (*archive.Store, error) {
	if ctx.store != nil {
		return ctx.store, nil
	}
	if ctx.dbPath == "" {
		return nil, errors.New("--db is required")
	}
	store, err := archive.Open(ctx.dbPath, archive.Options{Logger: ctx.logger()})
	if err != nil {
		return nil, err
	}
	ctx.store = store
	return store, nil
}

func (ctx *commandContext) close() error {
	if ctx.store == nil {
		return nil
	}
	err := ctx.store.Close()
	ctx.store = nil
	return err
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{dbPath: os.Getenv("SCRIBE_DB")}

	rootCmd := &cobra.Command{
		Use:           "scribedump",
		Short:         "Inspect transcription archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.dbPath, "db", ctx.dbPath, "Archive database path (default $SCRIBE_DB)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log debug messages")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newDumpCommand(ctx))
	rootCmd.AddCommand(newVerifyCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	return rootCmd
}

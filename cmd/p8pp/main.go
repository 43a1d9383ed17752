package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/picoboots/p8pp/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "p8pp:", err)
		os.Exit(1)
	}
}

// app is the state shared by every command once flags are parsed.
type app struct {
	cfgPath  string
	logLevel string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "p8pp",
		Short:         "Build-variant preprocessor for PICO-8 Lua sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&a.cfgPath, "config", "c", config.DefaultFile, "config yaml path")
	fs.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	cmd.AddCommand(
		newPreprocessCmd(a),
		newSubstituteCmd(a),
		newWatchCmd(a),
		newVariantsCmd(a),
		newCheckCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if cmd.Flags().Changed("config") {
		a.cfg, err = config.Load(a.cfgPath)
	} else {
		a.cfg, err = config.LoadIfExists(a.cfgPath)
	}
	if err != nil {
		return err
	}

	level := a.cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return err
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	lc "github.com/os2mo/loracache"
	"github.com/os2mo/loracache/internal/config"
)

type app struct {
	pretty   bool
	envFiles []string
	cfg      *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "loracache",
		Short:         "Populate and compare the registry and GraphQL organisation caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFiles...)
			if err != nil {
				return withCode(exitUsage, err)
			}
			a.cfg = cfg

			logger, err := newLogger(cfg.LogLevel, a.pretty)
			if err != nil {
				return withCode(exitUsage, err)
			}
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "Human readable console logging")
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "Env files to load (default .env, .env.local)")

	cmd.AddCommand(newPopulateCmd(a))
	cmd.AddCommand(newCompareCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}

func newLogger(level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, errors.Wrapf(err, "log level %q", level)
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(lvl).With().Timestamp().Str("service", "loracache").Logger(), nil
}

// classify maps a populate failure to an exit code.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lc.ErrUnknownScope), errors.Is(err, lc.ErrUnexpectedValue), errors.Is(err, lc.ErrMissingSnapshot):
		return withCode(exitData, err)
	default:
		return withCode(exitFetch, err)
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

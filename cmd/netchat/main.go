//go:build unix

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rectcircle/netchat/internal/config"
	"github.com/rectcircle/netchat/internal/logging"
	"github.com/rectcircle/netchat/internal/netchat"
	"github.com/rectcircle/netchat/internal/netchat/relay"
	"github.com/rectcircle/netchat/internal/variable"
	"github.com/rectcircle/netchat/tools"
)

var (
	subcommandKeyServe   = string(config.ModeServe)
	subcommandKeyConnect = string(config.ModeConnect)
	subcommandKeyHelp    = "help"
)

// usageError - bad command line, exit code 2
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// parseArgs - args[0] is the subcommand
func parseArgs(mode config.Mode, desc string, args []string, output io.Writer) (*config.Config, error) {
	subcommand := string(mode)
	flagset := pflag.NewFlagSet(subcommand, pflag.ContinueOnError)
	flagset.SetOutput(output)
	flagset.StringP(config.FlagAddr, "a", variable.DefaultHost, "address - bind address when serving, peer address when connecting")
	flagset.Uint16P(config.FlagPort, "p", variable.DefaultPort, "port - 0 lets the system pick one when serving")
	flagset.BoolP(config.FlagUDP, "u", false, "use udp instead of tcp")
	flagset.StringP(config.FlagConfig, "c", "", "config file (default $HOME/.netchat/netchat.yaml when present)")
	flagset.String(config.FlagLogLevel, "info", "log level: debug, info, warn, error")
	flagset.String(config.FlagLogFormat, "auto", "log format: auto, console, json")
	flagset.String(config.FlagLogFile, "", "also write logs to this file")
	flagset.Usage = func() {
		fmt.Fprintf(output, "%s\nUsage of `%s %s [flags] [username]`:\n", desc, os.Args[0], subcommand)
		flagset.PrintDefaults()
	}
	if err := flagset.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, &usageError{err}
	}
	if flagset.NArg() > 1 {
		flagset.Usage()
		return nil, &usageError{errors.Errorf("unexpected arguments: %v", flagset.Args()[1:])}
	}
	return config.Load(mode, flagset)
}

func helpAndExit(isErr bool) {
	stdOutOrErr := os.Stdout
	if isErr {
		stdOutOrErr = os.Stderr
	}
	fmt.Fprintf(stdOutOrErr, "A peer to peer line chat over tcp or udp\nUsage of %s serve | connect [flags] [username]\n  -h, --help\n         output the subcommand help\n", os.Args[0])
	if isErr {
		os.Exit(2)
	}
}

func configOrExit(mode config.Mode, desc string, args []string) *config.Config {
	cfg, err := parseArgs(mode, desc, args, os.Stderr)
	var usageErr *usageError
	switch {
	case err == nil:
		return cfg
	case errors.Is(err, pflag.ErrHelp):
		os.Exit(0)
	case errors.As(err, &usageErr):
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(2)
	}
	tools.LogAndExitIfErr(nil, err)
	return nil
}

func run(cfg *config.Config) {
	logger, err := logging.New(cfg.Log)
	tools.LogAndExitIfErr(nil, err)
	defer logger.Sync()

	ep, err := cfg.Endpoint()
	tools.LogAndExitIfErr(logger, err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running netchat",
		zap.String("mode", string(cfg.Mode)),
		zap.String("username", cfg.Username),
		zap.Stringer("endpoint", ep),
	)
	if logging.IsTerminal(os.Stdin) {
		fmt.Fprintf(os.Stderr, "type a line and press enter to send it as %q, ctrl-d to quit\n", relay.Prefix(cfg.Username))
	}

	err = netchat.Run(ctx, netchat.Options{
		Endpoint: ep,
		Username: cfg.Username,
		Input:    relay.NewLines(os.Stdin, logger),
		Output:   os.Stdout,
		Logger:   logger,
	})
	tools.LogAndExitIfErr(logger, err)
}

func main() {
	if len(os.Args) < 2 {
		helpAndExit(true)
	}
	switch os.Args[1] {
	case subcommandKeyServe:
		run(configOrExit(config.ModeServe, "Wait for peers and chat with each of them", os.Args[1:]))
	case subcommandKeyConnect:
		run(configOrExit(config.ModeConnect, "Connect to a serving peer and chat", os.Args[1:]))
	case subcommandKeyHelp:
		helpAndExit(false)
	default:
		helpAndExit(true)
	}
}

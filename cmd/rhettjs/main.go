package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rhettl/rhettjs-sub001/internal/config"
	"github.com/rhettl/rhettjs-sub001/internal/logging"
	"github.com/rhettl/rhettjs-sub001/internal/scripting"
)

func main() {
	app := &cli.Command{
		Name:    "rhettjs",
		Version: scripting.Version,
		Usage:   "tick-driven JavaScript runtime for real-time hosts",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a script to completion against a wall-clock tick loop",
				ArgsUsage: "<script.js>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to rhettjs.toml"},
					&cli.IntFlag{Name: "workers", Usage: "worker pool size (overrides config)"},
					&cli.IntFlag{Name: "tps", Usage: "ticks per second (overrides config)"},
					&cli.DurationFlag{Name: "timeout", Usage: "event loop timeout (overrides config)"},
					&cli.BoolFlag{Name: "debug", Usage: "expose the debug flag to scripts"},
					&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn, or error"},
				},
				Action: runAction,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("script path required")
	}
	scriptPath := cmd.Args().Get(0)

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("workers") {
		cfg.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("tps") {
		cfg.TicksPerSecond = int(cmd.Int("tps"))
	}
	if cmd.IsSet("timeout") {
		cfg.EventLoopTimeoutMillis = cmd.Duration("timeout").Milliseconds()
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetupLogger(cfg.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", scriptPath, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := scripting.NewEngine(scripting.Options{
		Workers:          cfg.Workers,
		TicksPerSecond:   cfg.TicksPerSecond,
		EventLoopTimeout: cfg.EventLoopTimeout(),
		Debug:            cfg.Debug,
		Logger:           logger,
	})
	defer engine.Close()
	engine.StartTicker(ctx)

	start := time.Now()
	outcome, err := engine.Execute(ctx, scriptPath, string(source))
	if err != nil {
		return err
	}
	logger.Info("script run finished",
		"script", scriptPath, "outcome", outcome.String(), "elapsed", time.Since(start))
	if outcome != scripting.OutcomeCompleted {
		return fmt.Errorf("script %s: %s", scriptPath, outcome)
	}
	return nil
}

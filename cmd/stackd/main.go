package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/logging"
	"github.com/stack-tools/stackd/pkg/rest"
	"github.com/stack-tools/stackd/pkg/supervisor"
)

type flagOptions struct {
	Config      string `long:"config" short:"c" description:"path to the stackd configuration file" required:"true"`
	LogLevel    string `long:"log-level" description:"log level override (debug, info, warn, error)"`
	RunDuration int    `long:"run-duration" description:"exit after this many seconds (0 = run until signalled)"`
	Validate    bool   `long:"validate" description:"validate the configuration and exit"`
}

func main() {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "stackd: %v\n", err)
		os.Exit(1)
	}
}

func run(opts flagOptions) error {
	cfg, err := config.LoadFromFile(opts.Config)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Supervisor.LogLevel = opts.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if opts.Validate {
		fmt.Println("configuration OK")
		return nil
	}

	root, err := logging.NewZapLogger(logging.ZapConfig{
		Level:  cfg.Supervisor.LogLevel,
		Format: cfg.Supervisor.LogFormat,
	})
	if err != nil {
		return err
	}
	logger := logging.NewPrefixedLogger(root, "stackd: ")

	logger.Infof("Starting, config: %s", opts.Config)

	ctx := context.Background()
	if opts.RunDuration > 0 {
		duration := time.Duration(opts.RunDuration) * time.Second
		logger.Infof("Run duration bound: %v", duration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := config.NewStore(cfg)
	sup := supervisor.New(store, opts.Config, logger)

	if cfg.Supervisor.ListenAddress != "" {
		handler := rest.NewHandler(sup, sup.Metrics().Registry())
		server := rest.NewServer(cfg.Supervisor.ListenAddress, handler,
			logging.NewPrefixedLogger(logger, "rest: "))
		server.Run(ctx)
	}

	return sup.Run(ctx)
}

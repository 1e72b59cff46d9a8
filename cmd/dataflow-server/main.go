package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
)

// Version information, set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dataflow-server %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return serverErr.ExitCode
		}
		return ExitConfigError
	}

	if err := server.Start(context.Background()); err != nil {
		logger.Error("server failed", "error", err)
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return serverErr.ExitCode
		}
		return ExitHTTPServerError
	}

	return ExitSuccess
}

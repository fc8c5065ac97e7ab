// umbra-fetchd - out-of-process stylesheet fetch proxy
//
// umbra launches this daemon when fetch.mode is "plugin" and talks to it
// over the go-plugin net/rpc protocol. It answers fetchCss requests with the
// stylesheet text or an error message; it never fails a call.
//
// Configuration is read like umbra's own (config.toml and UMBRA_* variables),
// using the fetch.* and logging.* settings.
//
// Build:
//   go build -o umbra-fetchd ./cmd/umbra-fetchd
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"fmt"
	"os"

	"github.com/jmylchreest/umbra/internal/config"
	"github.com/jmylchreest/umbra/internal/fetchproxy"
	"github.com/jmylchreest/umbra/internal/logging"
	pkgfetchproxy "github.com/jmylchreest/umbra/pkg/fetchproxy"
)

func main() {
	cfg, err := config.Load(os.Getenv("UMBRA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "umbra-fetchd: %v\n", err)
		os.Exit(1)
	}

	// go-plugin parses JSON log lines from the daemon's stderr.
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "umbra-fetchd: %v\n", err)
		os.Exit(1)
	}

	bg, err := fetchproxy.FromConfig(cfg, logger.Named("fetch"))
	if err != nil {
		logger.Error("failed to create fetch proxy", "error", err)
		os.Exit(1)
	}

	pkgfetchproxy.Serve(bg, logger)
}

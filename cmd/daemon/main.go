// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/rtcrelay/internal/config"
	"github.com/ManuGH/rtcrelay/internal/daemon"
	rlog "github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML); defaults to $RELAY_CONFIG")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	rlog.Configure(rlog.Config{Level: "info", Service: "rtcrelay", Version: version.Version})
	logger := rlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := resolveConfigPath(*configPath)
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(rlog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	rlog.Configure(rlog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: version.Version})
	logger = rlog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(rlog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Str("listen", cfg.Server.Listen).
		Str("control_plane", maskURL(cfg.ControlPlane.BaseURL)).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("configuration loaded")

	rt, err := daemon.Bootstrap(ctx, cfg, version.Version)
	if err != nil {
		logger.Fatal().Err(err).Str(rlog.FieldEvent, "daemon.bootstrap_failed").Msg("failed to wire runtime")
	}

	app, err := daemon.NewApp(rt, config.NewHolder(cfg, loader), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create app")
	}
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(rlog.FieldEvent, "daemon.exit_error").Msg("daemon exited with error")
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv("RELAY_CONFIG"))
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/rtcrelay/internal/config"
)

const redacted = "***"

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rtcrelay config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  rtcrelay config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rtcrelay config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := resolveConfigPath(file)
	if path == "" {
		fmt.Fprintln(stderr, "Error: --file is required (RELAY_CONFIG is not set)")
		return 2
	}
	if _, err := config.NewLoader(path).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}
	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

// runConfigDump prints the effective configuration (defaults, file and
// environment merged) with secrets redacted.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rtcrelay config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.NewLoader(resolveConfigPath(file)).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	redact(&cfg)

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return 1
		}
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return 1
		}
		_ = enc.Close()
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", format)
		return 2
	}
	return 0
}

func redact(cfg *config.Config) {
	if cfg.ControlPlane.APIKey != "" {
		cfg.ControlPlane.APIKey = redacted
	}
	if cfg.Server.APIToken != "" {
		cfg.Server.APIToken = redacted
	}
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = redacted
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the relay configuration.
//
// Precedence is defaults, then the YAML file (strict: unknown keys are
// rejected), then RELAY_* environment variables. The result is validated before
// use. Holder keeps the active configuration and reloads it when the file
// changes or the process receives SIGHUP.
package config

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controlplane

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// DefaultPipeline is used when a config does not name a pipeline.
const DefaultPipeline = "streamdiffusion"

const maxStreamNameLen = 128

// PipelineConfig is the remote pipeline selection plus its parameter object.
type PipelineConfig struct {
	Pipeline string         `json:"pipeline"`
	Params   map[string]any `json:"params"`
}

// ParsePipelineConfig accepts either the {pipeline, params} form or a bare
// params object. The returned params are a deep copy of the input.
func ParsePipelineConfig(raw map[string]any) (PipelineConfig, error) {
	if raw == nil {
		return PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{}}, nil
	}

	cfg := PipelineConfig{Pipeline: DefaultPipeline}
	section := any(raw)
	if p, ok := raw["params"]; ok {
		section = p
		if name, ok := raw["pipeline"]; ok {
			s, isString := name.(string)
			if !isString {
				return PipelineConfig{}, relayerr.Configf("pipeline must be a string, got %T", name)
			}
			if strings.TrimSpace(s) != "" {
				cfg.Pipeline = strings.TrimSpace(s)
			}
		}
	}

	params, ok := section.(map[string]any)
	if !ok {
		return PipelineConfig{}, relayerr.Configf("pipeline params must be an object, got %T", section)
	}
	copied, err := deepCopy(params)
	if err != nil {
		return PipelineConfig{}, relayerr.Configf("pipeline params: %v", err)
	}
	cfg.Params = copied
	return cfg, nil
}

// ParsePipelineJSON decodes data and parses it with ParsePipelineConfig.
// Empty input yields the default pipeline with no params.
func ParsePipelineJSON(data []byte) (PipelineConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ParsePipelineConfig(nil)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return PipelineConfig{}, relayerr.Configf("pipeline config is not a JSON object: %v", err)
	}
	return ParsePipelineConfig(raw)
}

// Map returns the {pipeline, params} representation.
func (p PipelineConfig) Map() map[string]any {
	params := p.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{"pipeline": p.Pipeline, "params": params}
}

// Merge deep-merges partial over p. partial may be a {pipeline, params}
// object or a bare params object; nested objects merge key by key, every
// other value replaces. p is not modified.
func (p PipelineConfig) Merge(partial map[string]any) (PipelineConfig, error) {
	base, err := deepCopy(p.Params)
	if err != nil {
		return PipelineConfig{}, relayerr.Configf("pipeline params: %v", err)
	}
	out := PipelineConfig{Pipeline: p.Pipeline, Params: base}
	if out.Pipeline == "" {
		out.Pipeline = DefaultPipeline
	}
	if len(partial) == 0 {
		return out, nil
	}

	section := partial
	if _, ok := partial["params"]; ok {
		parsed, err := ParsePipelineConfig(partial)
		if err != nil {
			return PipelineConfig{}, err
		}
		if _, named := partial["pipeline"]; named {
			out.Pipeline = parsed.Pipeline
		}
		section = parsed.Params
	} else {
		section, err = deepCopy(partial)
		if err != nil {
			return PipelineConfig{}, relayerr.Configf("pipeline params: %v", err)
		}
	}
	out.Params = MergeMaps(out.Params, section)
	return out, nil
}

// Fingerprint is a deterministic SHA-256 over the canonical JSON encoding.
// encoding/json sorts map keys, so equal configs hash equally.
func (p PipelineConfig) Fingerprint() string {
	data, err := json.Marshal(p.Map())
	if err != nil {
		data = []byte(fmt.Sprintf("%v", p.Map()))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MergeMaps merges override into base in place and returns base.
func MergeMaps(base, override map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	for k, v := range override {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := base[k].(map[string]any); ok {
				base[k] = MergeMaps(existing, sub)
				continue
			}
		}
		base[k] = v
	}
	return base
}

func deepCopy(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DefaultStreamName returns the name used when the caller supplies none.
func DefaultStreamName(now time.Time) string {
	return "relay-stream-" + strconv.FormatInt(now.Unix(), 10)
}

// NormalizeStreamName trims name, applies NFC normalization and caps its
// length. An empty result means the default name should be used.
func NormalizeStreamName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) <= maxStreamNameLen {
		return name
	}
	runes := []rune(name)
	return string(runes[:maxStreamNameLen])
}

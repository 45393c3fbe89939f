// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controlplane

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

func TestParsePipelineConfig_Forms(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want PipelineConfig
	}{
		{
			name: "wrapped",
			raw:  map[string]any{"pipeline": "custom", "params": map[string]any{"prompt": "cat"}},
			want: PipelineConfig{Pipeline: "custom", Params: map[string]any{"prompt": "cat"}},
		},
		{
			name: "wrapped without pipeline",
			raw:  map[string]any{"params": map[string]any{"prompt": "cat"}},
			want: PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{"prompt": "cat"}},
		},
		{
			name: "bare params",
			raw:  map[string]any{"prompt": "dog", "seed": float64(42)},
			want: PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{"prompt": "dog", "seed": float64(42)}},
		},
		{
			name: "nil",
			raw:  nil,
			want: PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePipelineConfig(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParsePipelineConfig mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePipelineConfig_Invalid(t *testing.T) {
	_, err := ParsePipelineConfig(map[string]any{"params": "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, relayerr.ErrConfig))

	_, err = ParsePipelineConfig(map[string]any{"pipeline": 3, "params": map[string]any{}})
	assert.ErrorIs(t, err, relayerr.ErrConfig)

	_, err = ParsePipelineJSON([]byte(`[1,2]`))
	assert.ErrorIs(t, err, relayerr.ErrConfig)

	cfg, err := ParsePipelineJSON([]byte("  "))
	require.NoError(t, err)
	assert.Equal(t, DefaultPipeline, cfg.Pipeline)
}

func TestParsePipelineConfig_CopiesInput(t *testing.T) {
	nested := map[string]any{"scale": float64(1)}
	raw := map[string]any{"params": map[string]any{"controlnet": nested}}
	cfg, err := ParsePipelineConfig(raw)
	require.NoError(t, err)

	nested["scale"] = float64(9)
	assert.Equal(t, float64(1), cfg.Params["controlnet"].(map[string]any)["scale"])
}

func TestMerge_DeepMergesParams(t *testing.T) {
	base := PipelineConfig{
		Pipeline: DefaultPipeline,
		Params: map[string]any{
			"prompt": "a",
			"model":  "sd-turbo",
			"ip": map[string]any{
				"scale":   0.5,
				"enabled": true,
			},
		},
	}

	merged, err := base.Merge(map[string]any{
		"prompt": "b",
		"ip":     map[string]any{"scale": 0.8},
	})
	require.NoError(t, err)

	want := map[string]any{
		"prompt": "b",
		"model":  "sd-turbo",
		"ip":     map[string]any{"scale": 0.8, "enabled": true},
	}
	if diff := cmp.Diff(want, merged.Params); diff != "" {
		t.Fatalf("merged params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a", base.Params["prompt"], "base must not be modified")
	assert.Equal(t, 0.5, base.Params["ip"].(map[string]any)["scale"])
}

func TestMerge_WrappedPartialKeepsPipelineUnlessNamed(t *testing.T) {
	base := PipelineConfig{Pipeline: "custom", Params: map[string]any{"prompt": "a"}}

	merged, err := base.Merge(map[string]any{"params": map[string]any{"prompt": "b"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", merged.Pipeline)
	assert.Equal(t, "b", merged.Params["prompt"])

	merged, err = base.Merge(map[string]any{"pipeline": "other", "params": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "other", merged.Pipeline)
	assert.Equal(t, "a", merged.Params["prompt"])
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{"b": 1, "a": map[string]any{"y": 2, "x": 1}}}
	b := PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": 1}}
	c := PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{"b": 2}}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
	assert.Equal(t,
		PipelineConfig{Pipeline: DefaultPipeline}.Fingerprint(),
		PipelineConfig{Pipeline: DefaultPipeline, Params: map[string]any{}}.Fingerprint())
}

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "relay-stream-1700000000", DefaultStreamName(time.Unix(1700000000, 0)))

	// "e" + combining acute accent normalizes to a single code point.
	assert.Equal(t, "café", NormalizeStreamName("  café "))
	assert.Empty(t, NormalizeStreamName("   "))
	assert.Len(t, []rune(NormalizeStreamName(strings.Repeat("x", 300))), maxStreamNameLen)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/ManuGH/rtcrelay/internal/rtc"
)

// Config is the complete relay configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Stream       StreamConfig       `yaml:"stream"`
	WHEP         WHEPConfig         `yaml:"whep"`
	RTC          RTCConfig          `yaml:"rtc"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	MaxConns        int           `yaml:"max_conns"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit    int      `yaml:"rate_limit"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	APIToken     string   `yaml:"api_token"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ControlPlaneConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	StatusTimeout  time.Duration `yaml:"status_timeout"`
	StatusInterval time.Duration `yaml:"status_interval"`
	MaxRetries     int           `yaml:"max_retries"`
}

type StreamConfig struct {
	FrameRate         int           `yaml:"frame_rate"`
	FrameWidth        int           `yaml:"frame_width"`
	FrameHeight       int           `yaml:"frame_height"`
	FallbackMedia     string        `yaml:"fallback_media"`
	FallbackImagesDir string        `yaml:"fallback_images_dir"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	Encoder           string        `yaml:"encoder"`
	Codec             string        `yaml:"codec"`
	BitrateKbps       int           `yaml:"bitrate_kbps"`
	FFmpegBinary      string        `yaml:"ffmpeg_binary"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
}

type WHEPConfig struct {
	Decode      bool          `yaml:"decode"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	PLIInterval time.Duration `yaml:"pli_interval"`
}

type RTCConfig struct {
	ICEServers []string `yaml:"ice_servers"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// DBPath is the sqlite database holding settings and session history.
func (s StorageConfig) DBPath() string { return filepath.Join(s.DataDir, "rtcrelay.db") }

// PipelinePath is the cached default pipeline file.
func (s StorageConfig) PipelinePath() string { return filepath.Join(s.DataDir, "pipeline.json") }

// RedisConfig enables the shared status cache when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:          ":8188",
			MaxConns:        256,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       600,
			MaxBodyBytes:    32 << 20,
		},
		Log: LogConfig{Level: "info", Service: "rtcrelay"},
		ControlPlane: ControlPlaneConfig{
			BaseURL:        "https://api.daydream.live",
			Timeout:        30 * time.Second,
			StatusTimeout:  15 * time.Second,
			StatusInterval: 3 * time.Second,
			MaxRetries:     2,
		},
		Stream: StreamConfig{
			FrameRate:     30,
			FrameWidth:    1280,
			FrameHeight:   720,
			QueueCapacity: 90,
			Encoder:       "ffmpeg",
			Codec:         "vp8",
			BitrateKbps:   2000,
			FFmpegBinary:  "ffmpeg",
			PollInterval:  5 * time.Second,
			StopTimeout:   5 * time.Second,
		},
		WHEP: WHEPConfig{
			Width:       1280,
			Height:      720,
			PLIInterval: 3 * time.Second,
		},
		RTC:     RTCConfig{ICEServers: slices.Clone(rtc.DefaultICEServers)},
		Storage: StorageConfig{DataDir: "data"},
		Redis:   RedisConfig{KeyPrefix: "rtcrelay:"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

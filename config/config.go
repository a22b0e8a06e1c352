/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config loads the closed set of options spec.md §6 recognizes,
// from environment variables, an optional config file, and defaults, in
// that precedence order - the same layering the teacher's own config
// package uses, rebuilt here directly on spf13/viper for a single process
// rather than a multi-component registry.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the closed set of options spec.md §6 recognizes, plus the
// handful SPEC_FULL.md §C supplements (MultiplierMode, MetricsAddress).
type Config struct {
	ListenAddress       string   `mapstructure:"listen_address"`
	AllowedExecutables  []string `mapstructure:"allowed_executables"`
	MaxSessions         int      `mapstructure:"max_sessions"`
	MaxLineBytes        int64    `mapstructure:"max_line_bytes"`
	RecentFrameBytes    int64    `mapstructure:"recent_frame_bytes"`
	StreamChunkBytes    int      `mapstructure:"stream_chunk_bytes"`
	GraceSeconds        int      `mapstructure:"grace_seconds"`
	HeartbeatSeconds    int      `mapstructure:"heartbeat_seconds"`
	LoadThresholdPct    float64  `mapstructure:"load_threshold_pct"`
	LoadMultiplier      int      `mapstructure:"load_multiplier"`
	BaselineMultiplier  int      `mapstructure:"baseline_multiplier"`
	MultiplierMode      string   `mapstructure:"multiplier_mode"`
	UnknownFloorSeconds int      `mapstructure:"unknown_floor_seconds"`
	TimingHistoryCap    int      `mapstructure:"timing_history_cap"`
	HooksFile           string   `mapstructure:"hooks_file"`
	GlobalHookTimeout   int      `mapstructure:"global_hook_timeout"`
	TokenLimitMarker    string   `mapstructure:"token_limit_marker"`
	TimingStoreURL      string   `mapstructure:"timing_store_url"`
	MetricsAddress      string   `mapstructure:"metrics_address"`

	// MaxLineBytesCeiling bounds operator-provided MaxLineBytes; spec.md §9
	// fixes 8 MiB as the hard configurable ceiling.
	MaxLineBytesCeiling int64 `mapstructure:"max_line_bytes_ceiling"`
}

const (
	defaultListenAddress    = ":8765"
	defaultMaxSessions      = 256
	defaultMaxLineBytes     = 1 << 20  // 1 MiB
	defaultMaxLineCeiling   = 8 << 20  // 8 MiB
	defaultRecentFrameBytes = 10 << 20 // 10 MiB
	defaultStreamChunkBytes = 64 << 10 // 64 KiB
	defaultGraceSeconds     = 10
	defaultHeartbeatSeconds = 20
	defaultLoadThresholdPct = 14.0
	defaultLoadMultiplier   = 3
	defaultBaselineMult     = 3
	defaultMultiplierMode   = "compound"
	defaultUnknownFloorSec  = 600
	defaultTimingHistoryCap = 50
	defaultGlobalHookTO     = 60
	defaultTokenLimitMarker = "Claude AI usage limit reached"
)

// Load reads the configuration file at path (if non-empty), overlays
// environment variables (spec.md §6's four core names plus one env var
// per option, `CC_EXECUTOR_<OPTION>`), and fills unset fields with the
// documented defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_address", defaultListenAddress)
	v.SetDefault("allowed_executables", []string{})
	v.SetDefault("max_sessions", defaultMaxSessions)
	v.SetDefault("max_line_bytes", int64(defaultMaxLineBytes))
	v.SetDefault("max_line_bytes_ceiling", int64(defaultMaxLineCeiling))
	v.SetDefault("recent_frame_bytes", int64(defaultRecentFrameBytes))
	v.SetDefault("stream_chunk_bytes", defaultStreamChunkBytes)
	v.SetDefault("grace_seconds", defaultGraceSeconds)
	v.SetDefault("heartbeat_seconds", defaultHeartbeatSeconds)
	v.SetDefault("load_threshold_pct", defaultLoadThresholdPct)
	v.SetDefault("load_multiplier", defaultLoadMultiplier)
	v.SetDefault("baseline_multiplier", defaultBaselineMult)
	v.SetDefault("multiplier_mode", defaultMultiplierMode)
	v.SetDefault("unknown_floor_seconds", defaultUnknownFloorSec)
	v.SetDefault("timing_history_cap", defaultTimingHistoryCap)
	v.SetDefault("hooks_file", "")
	v.SetDefault("global_hook_timeout", defaultGlobalHookTO)
	v.SetDefault("token_limit_marker", defaultTokenLimitMarker)
	v.SetDefault("timing_store_url", "")
	v.SetDefault("metrics_address", "")

	v.SetEnvPrefix("cc_executor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// spec.md §6's four core env var names, bound alongside the generic
	// CC_EXECUTOR_* form so existing deployment scripts keep working.
	_ = v.BindEnv("listen_address", "LISTEN_ADDRESS", "CC_EXECUTOR_LISTEN_ADDRESS")
	_ = v.BindEnv("allowed_executables", "ALLOWED_EXECUTABLES", "CC_EXECUTOR_ALLOWED_EXECUTABLES")
	_ = v.BindEnv("timing_store_url", "TIMING_STORE_URL", "CC_EXECUTOR_TIMING_STORE_URL")
	_ = v.BindEnv("hooks_file", "HOOKS_FILE", "CC_EXECUTOR_HOOKS_FILE")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if s := v.GetString("allowed_executables"); s != "" && len(c.AllowedExecutables) == 0 {
		c.AllowedExecutables = strings.Split(s, ",")
	}

	if c.MaxLineBytes > c.MaxLineBytesCeiling {
		c.MaxLineBytes = c.MaxLineBytesCeiling
	}

	return c, nil
}

// GraceDuration is GraceSeconds as a time.Duration, the unit every
// process/hook timer actually consumes.
func (c *Config) GraceDuration() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

// HeartbeatDuration is HeartbeatSeconds as a time.Duration.
func (c *Config) HeartbeatDuration() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// GlobalHookTimeoutDuration is GlobalHookTimeout as a time.Duration.
func (c *Config) GlobalHookTimeoutDuration() time.Duration {
	return time.Duration(c.GlobalHookTimeout) * time.Second
}

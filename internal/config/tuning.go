package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/headtrack.defaults.json"

// Built-in defaults used when a field is absent from the JSON.
const (
	DefaultPort                    = 5252
	DefaultSensitivity             = 1.0
	DefaultStaleTimeout            = 2 * time.Second
	DefaultReceiveTimeout          = time.Millisecond
	DefaultMaxDrainPackets         = 256
	DefaultRecenterThresholdFrames = 60
	DefaultDampingThreshold        = 2.0
	DefaultDampingRange            = 8.0
	DefaultDampingFloor            = 0.15
	DefaultCacheEpsilon            = 0.01
)

// TuningConfig represents the root configuration for head tracking. Fields
// omitted from the JSON fall back to the Get* defaults, so partial configs are
// safe.
type TuningConfig struct {
	// Sensor link
	Port            *int    `json:"port,omitempty"`
	StaleTimeout    *string `json:"stale_timeout,omitempty"`   // duration string like "2s"
	ReceiveTimeout  *string `json:"receive_timeout,omitempty"` // per-poll read window, like "1ms"
	MaxDrainPackets *int    `json:"max_drain_packets,omitempty"`

	// Sensitivity multipliers; values <= 0 mean 1.0
	YawSensitivity   *float64 `json:"yaw_sensitivity,omitempty"`
	PitchSensitivity *float64 `json:"pitch_sensitivity,omitempty"`
	RollSensitivity  *float64 `json:"roll_sensitivity,omitempty"`

	// Pose state machine
	RecenterThresholdFrames *int     `json:"recenter_threshold_frames,omitempty"`
	CacheEpsilon            *float64 `json:"cache_epsilon,omitempty"`
	RecomputeEachFrame      *bool    `json:"recompute_each_frame,omitempty"`

	// Influence damping during host-driven camera motion
	DampingThreshold *float64 `json:"damping_threshold,omitempty"`
	DampingRange     *float64 `json:"damping_range,omitempty"`
	DampingFloor     *float64 `json:"damping_floor,omitempty"`

	// Session
	StartEnabled *bool `json:"start_enabled,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Port:                    ptrInt(DefaultPort),
		StaleTimeout:            ptrString(DefaultStaleTimeout.String()),
		ReceiveTimeout:          ptrString(DefaultReceiveTimeout.String()),
		MaxDrainPackets:         ptrInt(DefaultMaxDrainPackets),
		YawSensitivity:          ptrFloat64(DefaultSensitivity),
		PitchSensitivity:        ptrFloat64(DefaultSensitivity),
		RollSensitivity:         ptrFloat64(DefaultSensitivity),
		RecenterThresholdFrames: ptrInt(DefaultRecenterThresholdFrames),
		CacheEpsilon:            ptrFloat64(DefaultCacheEpsilon),
		RecomputeEachFrame:      ptrBool(false),
		DampingThreshold:        ptrFloat64(DefaultDampingThreshold),
		DampingRange:            ptrFloat64(DefaultDampingRange),
		DampingFloor:            ptrFloat64(DefaultDampingFloor),
		StartEnabled:            ptrBool(true),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Port != nil && (*c.Port < 0 || *c.Port > 65535) {
		return fmt.Errorf("port must be between 0 and 65535, got %d", *c.Port)
	}

	for name, s := range map[string]*string{
		"stale_timeout":   c.StaleTimeout,
		"receive_timeout": c.ReceiveTimeout,
	} {
		if s == nil || *s == "" {
			continue
		}
		d, err := time.ParseDuration(*s)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *s)
		}
	}

	if c.MaxDrainPackets != nil && *c.MaxDrainPackets < 1 {
		return fmt.Errorf("max_drain_packets must be at least 1, got %d", *c.MaxDrainPackets)
	}
	if c.RecenterThresholdFrames != nil && *c.RecenterThresholdFrames < 0 {
		return fmt.Errorf("recenter_threshold_frames must be non-negative, got %d", *c.RecenterThresholdFrames)
	}
	if c.CacheEpsilon != nil && *c.CacheEpsilon < 0 {
		return fmt.Errorf("cache_epsilon must be non-negative, got %f", *c.CacheEpsilon)
	}
	if c.DampingThreshold != nil && *c.DampingThreshold < 0 {
		return fmt.Errorf("damping_threshold must be non-negative, got %f", *c.DampingThreshold)
	}
	if c.DampingRange != nil && *c.DampingRange <= 0 {
		return fmt.Errorf("damping_range must be positive, got %f", *c.DampingRange)
	}
	if c.DampingFloor != nil && (*c.DampingFloor < 0 || *c.DampingFloor > 1) {
		return fmt.Errorf("damping_floor must be between 0 and 1, got %f", *c.DampingFloor)
	}

	return nil
}

// GetPort returns the UDP port or the default. Values <= 0 select the default.
func (c *TuningConfig) GetPort() int {
	if c.Port == nil || *c.Port <= 0 {
		return DefaultPort
	}
	return *c.Port
}

// GetStaleTimeout parses and returns the StaleTimeout as a time.Duration.
func (c *TuningConfig) GetStaleTimeout() time.Duration {
	return parseDurationOr(c.StaleTimeout, DefaultStaleTimeout)
}

// GetReceiveTimeout parses and returns the ReceiveTimeout as a time.Duration.
func (c *TuningConfig) GetReceiveTimeout() time.Duration {
	return parseDurationOr(c.ReceiveTimeout, DefaultReceiveTimeout)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

// GetMaxDrainPackets returns the max_drain_packets value or the default.
func (c *TuningConfig) GetMaxDrainPackets() int {
	if c.MaxDrainPackets == nil || *c.MaxDrainPackets < 1 {
		return DefaultMaxDrainPackets
	}
	return *c.MaxDrainPackets
}

// GetYawSensitivity returns the yaw multiplier; anything <= 0 becomes 1.0.
func (c *TuningConfig) GetYawSensitivity() float64 {
	return sensitivityOr(c.YawSensitivity)
}

// GetPitchSensitivity returns the pitch multiplier; anything <= 0 becomes 1.0.
func (c *TuningConfig) GetPitchSensitivity() float64 {
	return sensitivityOr(c.PitchSensitivity)
}

// GetRollSensitivity returns the roll multiplier; anything <= 0 becomes 1.0.
func (c *TuningConfig) GetRollSensitivity() float64 {
	return sensitivityOr(c.RollSensitivity)
}

func sensitivityOr(v *float64) float64 {
	if v == nil || *v <= 0 {
		return DefaultSensitivity
	}
	return *v
}

// GetRecenterThresholdFrames returns the recenter_threshold_frames value or the default.
func (c *TuningConfig) GetRecenterThresholdFrames() int {
	if c.RecenterThresholdFrames == nil {
		return DefaultRecenterThresholdFrames
	}
	return *c.RecenterThresholdFrames
}

// GetCacheEpsilon returns the cache_epsilon value or the default.
func (c *TuningConfig) GetCacheEpsilon() float64 {
	if c.CacheEpsilon == nil {
		return DefaultCacheEpsilon
	}
	return *c.CacheEpsilon
}

// GetRecomputeEachFrame returns the recompute_each_frame value or the default.
func (c *TuningConfig) GetRecomputeEachFrame() bool {
	if c.RecomputeEachFrame == nil {
		return false
	}
	return *c.RecomputeEachFrame
}

// GetDampingThreshold returns the damping_threshold value or the default.
func (c *TuningConfig) GetDampingThreshold() float64 {
	if c.DampingThreshold == nil {
		return DefaultDampingThreshold
	}
	return *c.DampingThreshold
}

// GetDampingRange returns the damping_range value or the default.
func (c *TuningConfig) GetDampingRange() float64 {
	if c.DampingRange == nil || *c.DampingRange <= 0 {
		return DefaultDampingRange
	}
	return *c.DampingRange
}

// GetDampingFloor returns the damping_floor value or the default.
func (c *TuningConfig) GetDampingFloor() float64 {
	if c.DampingFloor == nil {
		return DefaultDampingFloor
	}
	return *c.DampingFloor
}

// GetStartEnabled returns the start_enabled value or the default.
func (c *TuningConfig) GetStartEnabled() bool {
	if c.StartEnabled == nil {
		return true
	}
	return *c.StartEnabled
}

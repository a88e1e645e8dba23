package fitness

import (
	"fmt"
	"math"

	"gopkg.in/ini.v1"
)

// Coefficients whose absolute value exceeds this ceiling are rejected on load.
const maxCoefficientMagnitude = 1000.0

// Config is the flat record of reward-shaping and scoring coefficients. It is
// passed by value into the evaluator and never mutated during a match.
type Config struct {
	CloseRange float64 `ini:"close_range"`
	MidRange   float64 `ini:"mid_range"`
	FarRange   float64 `ini:"far_range"`

	CloseReward float64 `ini:"close_reward"`
	MidReward   float64 `ini:"mid_reward"`
	FarReward   float64 `ini:"far_reward"`

	FacingReward     float64 `ini:"facing_reward"`
	AggressionReward float64 `ini:"aggression_reward"`
	AggressionRange  float64 `ini:"aggression_range"`

	TimePenalty float64 `ini:"time_penalty"`

	EdgeZone    float64 `ini:"edge_zone"`
	EdgePenalty float64 `ini:"edge_penalty"`

	CenterZone  float64 `ini:"center_zone"`
	CenterBonus float64 `ini:"center_bonus"`

	MovementMinSpeed float64 `ini:"movement_min_speed"`
	MovementReward   float64 `ini:"movement_reward"`

	DamageMultiplier float64 `ini:"damage_multiplier"`
	HealthMultiplier float64 `ini:"health_multiplier"`

	KnockoutBonus   float64 `ini:"knockout_bonus"`
	TimeoutWinBonus float64 `ini:"timeout_win_bonus"`

	StalematePenalty         float64 `ini:"stalemate_penalty"`
	StalemateDamageThreshold float64 `ini:"stalemate_damage_threshold"`
}

// requiredKeys lists every coefficient an external fitness file must define.
// Imports are rejected wholesale when any key is missing.
var requiredKeys = []string{
	"close_range", "mid_range", "far_range",
	"close_reward", "mid_reward", "far_reward",
	"facing_reward", "aggression_reward", "aggression_range",
	"time_penalty",
	"edge_zone", "edge_penalty",
	"center_zone", "center_bonus",
	"movement_min_speed", "movement_reward",
	"damage_multiplier", "health_multiplier",
	"knockout_bonus", "timeout_win_bonus",
	"stalemate_penalty", "stalemate_damage_threshold",
}

// DefaultConfig returns the stock coefficient set.
func DefaultConfig() Config {
	return Config{
		CloseRange: 80,
		MidRange:   160,
		FarRange:   280,

		CloseReward: 0.03,
		MidReward:   0.015,
		FarReward:   0.005,

		FacingReward:     0.01,
		AggressionReward: 0.05,
		AggressionRange:  100,

		TimePenalty: 0.002,

		EdgeZone:    60,
		EdgePenalty: 0.02,

		CenterZone:  120,
		CenterBonus: 0.005,

		MovementMinSpeed: 0.5,
		MovementReward:   0.004,

		DamageMultiplier: 2.0,
		HealthMultiplier: 1.0,

		KnockoutBonus:   150,
		TimeoutWinBonus: 50,

		StalematePenalty:         80,
		StalemateDamageThreshold: 10,
	}
}

// Load reads a coefficient set from an INI file. Every key must be present;
// there is no partial merge with defaults.
func Load(path string) (Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("load fitness config %s: %w", path, err)
	}

	section := file.Section("fitness")
	for _, key := range requiredKeys {
		if !section.HasKey(key) {
			return Config{}, fmt.Errorf("fitness config %s: missing key %q in [fitness]", path, key)
		}
	}

	var cfg Config
	if err := section.MapTo(&cfg); err != nil {
		return Config{}, fmt.Errorf("map fitness config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("fitness config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces the configuration contract: finite values everywhere,
// non-negative thresholds, and a sanity ceiling on magnitude.
func (c Config) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"close_range", c.CloseRange},
		{"mid_range", c.MidRange},
		{"far_range", c.FarRange},
		{"close_reward", c.CloseReward},
		{"mid_reward", c.MidReward},
		{"far_reward", c.FarReward},
		{"facing_reward", c.FacingReward},
		{"aggression_reward", c.AggressionReward},
		{"aggression_range", c.AggressionRange},
		{"time_penalty", c.TimePenalty},
		{"edge_zone", c.EdgeZone},
		{"edge_penalty", c.EdgePenalty},
		{"center_zone", c.CenterZone},
		{"center_bonus", c.CenterBonus},
		{"movement_min_speed", c.MovementMinSpeed},
		{"movement_reward", c.MovementReward},
		{"damage_multiplier", c.DamageMultiplier},
		{"health_multiplier", c.HealthMultiplier},
		{"knockout_bonus", c.KnockoutBonus},
		{"timeout_win_bonus", c.TimeoutWinBonus},
		{"stalemate_penalty", c.StalematePenalty},
		{"stalemate_damage_threshold", c.StalemateDamageThreshold},
	}
	for _, item := range named {
		if math.IsNaN(item.value) || math.IsInf(item.value, 0) {
			return fmt.Errorf("coefficient %s must be finite, got %f", item.name, item.value)
		}
		if math.Abs(item.value) > maxCoefficientMagnitude {
			return fmt.Errorf("coefficient %s exceeds magnitude ceiling %0.f: %f", item.name, maxCoefficientMagnitude, item.value)
		}
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"close_range", c.CloseRange},
		{"mid_range", c.MidRange},
		{"far_range", c.FarRange},
		{"aggression_range", c.AggressionRange},
		{"edge_zone", c.EdgeZone},
		{"center_zone", c.CenterZone},
		{"movement_min_speed", c.MovementMinSpeed},
		{"stalemate_damage_threshold", c.StalemateDamageThreshold},
	}
	for _, item := range thresholds {
		if item.value < 0 {
			return fmt.Errorf("threshold %s must be >= 0, got %f", item.name, item.value)
		}
	}

	if c.CloseRange > c.MidRange || c.MidRange > c.FarRange {
		return fmt.Errorf("distance bands must be ordered: close=%f mid=%f far=%f", c.CloseRange, c.MidRange, c.FarRange)
	}
	return nil
}

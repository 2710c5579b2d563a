// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, which holds the tunable
// parameters of the input synthesis layer: how long a click is held, how the
// pointer travels to its target and how fast typed fallback entry runs.
package config

import "github.com/spf13/viper"

// HumanoidConfig holds the parameters for pointer and keyboard synthesis.
type HumanoidConfig struct {
	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" json:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" json:"click_hold_max_ms"`
	// MoveSteps is the number of intermediate pointer positions on the way to a target.
	MoveSteps int `mapstructure:"move_steps" json:"move_steps"`
	// MoveDurationMs is the total travel time of one pointer movement.
	MoveDurationMs int `mapstructure:"move_duration_ms" json:"move_duration_ms"`
	// KeysPerSecond paces character-by-character entry.
	KeysPerSecond float64 `mapstructure:"keys_per_second" json:"keys_per_second"`
	// SettleMs is the pause after keyboard shortcuts, giving the target app time to react.
	SettleMs int `mapstructure:"settle_ms" json:"settle_ms"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("humanoid.click_hold_min_ms", 40)
	v.SetDefault("humanoid.click_hold_max_ms", 90)
	v.SetDefault("humanoid.move_steps", 12)
	v.SetDefault("humanoid.move_duration_ms", 120)
	v.SetDefault("humanoid.keys_per_second", 40.0)
	v.SetDefault("humanoid.settle_ms", 50)
}

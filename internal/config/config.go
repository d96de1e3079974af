// Package config loads the reflex core's tunable thresholds from an
// optional YAML file and from environment variable overrides, following the
// same Default...Config() plus override pattern the teacher's scheduler
// uses, so none of the controllers' magic numbers are compiled-in only.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/conscious-bot/reflexcore/internal/reflex"
)

// ReflexConfig bundles every controller's tunables plus the registry's
// guard staleness window and world-state cache TTL.
type ReflexConfig struct {
	CacheTTLMs int `yaml:"cacheTTLMs"`
	StaleMs    int `yaml:"staleMs"`

	Hunger      HungerConfig      `yaml:"hunger"`
	Exploration ExplorationConfig `yaml:"exploration"`
	Sleep       SleepConfig       `yaml:"sleep"`
}

// HungerConfig mirrors reflex.HungerConfig with YAML tags.
type HungerConfig struct {
	TriggerThreshold  int `yaml:"triggerThreshold"`
	ResetThreshold    int `yaml:"resetThreshold"`
	CriticalThreshold int `yaml:"criticalThreshold"`
}

// ExplorationConfig mirrors reflex.ExplorationConfig with YAML tags.
type ExplorationConfig struct {
	IdleTriggerTicks int     `yaml:"idleTriggerTicks"`
	IdleResetTicks   int     `yaml:"idleResetTicks"`
	CooldownMs       int     `yaml:"cooldownMs"`
	MinHealth        float64 `yaml:"minHealth"`
	MinFood          int     `yaml:"minFood"`
	MaxHostiles      int     `yaml:"maxHostiles"`
	MinDisplacement  float64 `yaml:"minDisplacement"`
	MaxDisplacement  float64 `yaml:"maxDisplacement"`
}

// SleepConfig mirrors reflex.SleepConfig with YAML tags.
type SleepConfig struct {
	MaxHostiles  int `yaml:"maxHostiles"`
	SearchRadius int `yaml:"searchRadius"`
}

// DefaultReflexConfig returns the thresholds named throughout the reflex
// package's Default...Config() constructors.
func DefaultReflexConfig() ReflexConfig {
	h := reflex.DefaultHungerConfig()
	e := reflex.DefaultExplorationConfig()
	s := reflex.DefaultSleepConfig()

	return ReflexConfig{
		CacheTTLMs: 2000,
		StaleMs:    300000,
		Hunger: HungerConfig{
			TriggerThreshold:  h.TriggerThreshold,
			ResetThreshold:    h.ResetThreshold,
			CriticalThreshold: h.CriticalThreshold,
		},
		Exploration: ExplorationConfig{
			IdleTriggerTicks: e.IdleTriggerTicks,
			IdleResetTicks:   e.IdleResetTicks,
			CooldownMs:       int(e.Cooldown / time.Millisecond),
			MinHealth:        e.MinHealth,
			MinFood:          e.MinFood,
			MaxHostiles:      e.MaxHostiles,
			MinDisplacement:  e.MinDisplacement,
			MaxDisplacement:  e.MaxDisplacement,
		},
		Sleep: SleepConfig{
			MaxHostiles:  s.MaxHostiles,
			SearchRadius: s.SearchRadius,
		},
	}
}

// LoadFile reads path as YAML and overlays it onto DefaultReflexConfig. A
// missing file is not an error — callers get the defaults.
func LoadFile(path string) (ReflexConfig, error) {
	cfg := DefaultReflexConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func envInt(key string, into *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err == nil {
		*into = v
	}
}

// ApplyEnvOverrides applies the reflex core's environment variable
// overrides on top of cfg, mirroring control_plane/main.go's
// os.Getenv("SCHEDULER_CONCURRENCY")-style overrides.
func ApplyEnvOverrides(cfg ReflexConfig) ReflexConfig {
	envInt("REFLEXCORE_CACHE_TTL_MS", &cfg.CacheTTLMs)
	envInt("REFLEXCORE_STALE_MS", &cfg.StaleMs)
	envInt("REFLEXCORE_HUNGER_TRIGGER_THRESHOLD", &cfg.Hunger.TriggerThreshold)
	envInt("REFLEXCORE_HUNGER_RESET_THRESHOLD", &cfg.Hunger.ResetThreshold)
	envInt("REFLEXCORE_HUNGER_CRITICAL_THRESHOLD", &cfg.Hunger.CriticalThreshold)
	envInt("REFLEXCORE_EXPLORATION_IDLE_TRIGGER_TICKS", &cfg.Exploration.IdleTriggerTicks)
	envInt("REFLEXCORE_EXPLORATION_COOLDOWN_MS", &cfg.Exploration.CooldownMs)
	envInt("REFLEXCORE_SLEEP_MAX_HOSTILES", &cfg.Sleep.MaxHostiles)
	return cfg
}

// ToHungerConfig converts the loaded config back into reflex.HungerConfig.
func (c ReflexConfig) ToHungerConfig() reflex.HungerConfig {
	return reflex.HungerConfig{
		TriggerThreshold:  c.Hunger.TriggerThreshold,
		ResetThreshold:    c.Hunger.ResetThreshold,
		CriticalThreshold: c.Hunger.CriticalThreshold,
	}
}

// ToExplorationConfig converts the loaded config back into
// reflex.ExplorationConfig.
func (c ReflexConfig) ToExplorationConfig() reflex.ExplorationConfig {
	return reflex.ExplorationConfig{
		IdleTriggerTicks: c.Exploration.IdleTriggerTicks,
		IdleResetTicks:   c.Exploration.IdleResetTicks,
		Cooldown:         time.Duration(c.Exploration.CooldownMs) * time.Millisecond,
		MinHealth:        c.Exploration.MinHealth,
		MinFood:          c.Exploration.MinFood,
		MaxHostiles:      c.Exploration.MaxHostiles,
		MinDisplacement:  c.Exploration.MinDisplacement,
		MaxDisplacement:  c.Exploration.MaxDisplacement,
	}
}

// ToSleepConfig converts the loaded config back into reflex.SleepConfig.
func (c ReflexConfig) ToSleepConfig() reflex.SleepConfig {
	return reflex.SleepConfig{
		MaxHostiles:  c.Sleep.MaxHostiles,
		SearchRadius: c.Sleep.SearchRadius,
	}
}

// CacheTTL returns the configured cache TTL as a time.Duration.
func (c ReflexConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// StaleWindow returns the configured goal-key staleness window.
func (c ReflexConfig) StaleWindow() time.Duration {
	return time.Duration(c.StaleMs) * time.Millisecond
}

package rules

import (
	"fmt"
	"os"
	"strings"

	"github.com/louisbranch/dicecore/internal/combat/opposed"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/platform/config"
	"gopkg.in/yaml.v3"
)

type envSettings struct {
	File             string        `env:"DICECORE_RULES_FILE"`
	OpposedMode      *opposed.Mode `env:"DICECORE_OPPOSED_MODE"`
	PelletCountLimit *bool         `env:"DICECORE_PELLET_COUNT_LIMIT"`
	CombatShift      *bool         `env:"DICECORE_COMBAT_SHIFT"`
}

// FromEnv builds settings from the defaults, an optional rules file named by
// DICECORE_RULES_FILE, and the individual DICECORE_* toggles, in that order.
func FromEnv() (Settings, error) {
	var cfg envSettings
	if err := config.ParseEnv(&cfg); err != nil {
		return Settings{}, err
	}
	settings := Default()
	if path := strings.TrimSpace(cfg.File); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return Settings{}, err
		}
		settings = loaded
	}
	cfg.overlay(&settings)
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (cfg envSettings) overlay(s *Settings) {
	if cfg.OpposedMode != nil {
		s.OpposedMode = *cfg.OpposedMode
	}
	if cfg.PelletCountLimit != nil {
		s.PelletCountLimit = *cfg.PelletCountLimit
	}
	if cfg.CombatShift != nil {
		s.CombatShift = *cfg.CombatShift
	}
}

// fileSettings is the YAML layout. Every section is optional and overlays
// the defaults.
type fileSettings struct {
	OpposedMode       string                    `yaml:"opposedMode"`
	PelletCountLimit  *bool                     `yaml:"pelletCountLimit"`
	CombatShift       *bool                     `yaml:"combatShift"`
	Table             *difficulty.Table         `yaml:"table"`
	PainDifficulty    map[string]string         `yaml:"painDifficulty"`
	HealingDifficulty map[string]string         `yaml:"healingDifficulty"`
	PainPenalties     map[string]PenaltyPair    `yaml:"painPenalties"`
	LocationPenalties map[string]map[string]int `yaml:"locationPenalties"`
}

// LoadFile reads a YAML rules file over the defaults and validates the result.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML rules over the defaults and validates the result.
func Parse(data []byte) (Settings, error) {
	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Settings{}, fmt.Errorf("decode rules file: %w", err)
	}
	settings := Default()
	if err := file.overlay(&settings); err != nil {
		return Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (f fileSettings) overlay(s *Settings) error {
	if f.OpposedMode != "" {
		mode, err := opposed.ParseMode(f.OpposedMode)
		if err != nil {
			return fmt.Errorf("opposedMode: %w", err)
		}
		s.OpposedMode = mode
	}
	if f.PelletCountLimit != nil {
		s.PelletCountLimit = *f.PelletCountLimit
	}
	if f.CombatShift != nil {
		s.CombatShift = *f.CombatShift
	}
	if f.Table != nil {
		s.Table = *f.Table
	}
	for raw, key := range f.PainDifficulty {
		sev, err := parseWoundSeverity(raw)
		if err != nil {
			return fmt.Errorf("painDifficulty: %w", err)
		}
		s.PainDifficulty[sev] = difficulty.Key(key)
	}
	for raw, key := range f.HealingDifficulty {
		sev, err := parseWoundSeverity(raw)
		if err != nil {
			return fmt.Errorf("healingDifficulty: %w", err)
		}
		s.HealingDifficulty[sev] = difficulty.Key(key)
	}
	for raw, pair := range f.PainPenalties {
		sev, err := parseWoundSeverity(raw)
		if err != nil {
			return fmt.Errorf("painPenalties: %w", err)
		}
		s.PainPenalties[sev] = pair
	}
	for category, byLoc := range f.LocationPenalties {
		category = strings.ToLower(strings.TrimSpace(category))
		if s.LocationPenalties[category] == nil {
			s.LocationPenalties[category] = map[wound.Location]int{}
		}
		for raw, penalty := range byLoc {
			loc, err := wound.ParseLocation(raw)
			if err != nil {
				return fmt.Errorf("locationPenalties.%s: %w", category, err)
			}
			if penalty < 0 {
				return fmt.Errorf("%w: locationPenalties.%s.%s is negative", ErrInvalidSettings, category, loc)
			}
			s.LocationPenalties[category][loc] = penalty
		}
	}
	return nil
}

func parseWoundSeverity(raw string) (wound.Severity, error) {
	sev, err := wound.ParseSeverity(raw)
	if err != nil {
		return wound.None, err
	}
	if sev == wound.None {
		return wound.None, fmt.Errorf("%w: severity none has no entry", ErrInvalidSettings)
	}
	return sev, nil
}

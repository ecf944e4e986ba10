package dicecore

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/dicecore/internal/platform/cmd"
	"github.com/louisbranch/dicecore/internal/platform/logging"
)

// Config holds dicecore command configuration.
type Config struct {
	DBPath  string        `env:"DICECORE_DB_PATH" envDefault:"dicecore.db"`
	Timeout time.Duration `env:"DICECORE_ACTION_TIMEOUT"`
	Locale  string        `env:"DICECORE_LOCALE" envDefault:"en-US"`
	Log     logging.Config

	Action  string
	Records string

	Character  string
	Weapon     string
	Wound      string
	Attribute  string
	Skill      string
	Difficulty string
	Modifier   int
	Mode       string

	Location string
	Severity string
	Piercing float64
	Wear     float64

	Burst    string
	Aiming   int
	Distance float64
	ArmorPen int
	WoundPen bool
	PlanOnly bool
	Dice     []int
}

// ParseConfig loads environment defaults and then parses flags into a
// Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite record store")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "action timeout (default 10s)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for error messages, e.g. en-US or pt-BR")
	fs.StringVar(&cfg.Action, "action", cfg.Action, "action to run: import, roll, fire, reduce, pain, heal, wounds")
	fs.StringVar(&cfg.Records, "records", cfg.Records, "YAML records file for the import action")
	fs.StringVar(&cfg.Character, "character", cfg.Character, "acting character id")
	fs.StringVar(&cfg.Weapon, "weapon", cfg.Weapon, "weapon id")
	fs.StringVar(&cfg.Wound, "wound", cfg.Wound, "wound id for the heal action")
	fs.StringVar(&cfg.Attribute, "attribute", cfg.Attribute, "attribute name")
	fs.StringVar(&cfg.Skill, "skill", cfg.Skill, "skill name")
	fs.StringVar(&cfg.Difficulty, "difficulty", cfg.Difficulty, "difficulty tier key")
	fs.IntVar(&cfg.Modifier, "modifier", cfg.Modifier, "percentage modifier")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "test mode: closed or open")
	fs.StringVar(&cfg.Location, "location", cfg.Location, "body location")
	fs.StringVar(&cfg.Severity, "severity", cfg.Severity, "wound severity name or code")
	fs.Float64Var(&cfg.Piercing, "piercing", cfg.Piercing, "armor piercing of the hit")
	fs.Float64Var(&cfg.Wear, "wear", cfg.Wear, "armor damage to add after the reduction")
	fs.StringVar(&cfg.Burst, "burst", cfg.Burst, "burst: single, short, long, full")
	fs.IntVar(&cfg.Aiming, "aiming", cfg.Aiming, "aiming level 0-2")
	fs.Float64Var(&cfg.Distance, "distance", cfg.Distance, "distance to the target in meters")
	fs.IntVar(&cfg.ArmorPen, "armor-penalty", cfg.ArmorPen, "armor encumbrance penalty in percent")
	fs.BoolVar(&cfg.WoundPen, "wound-penalty", cfg.WoundPen, "apply the attacker's wound penalties")
	fs.BoolVar(&cfg.PlanOnly, "plan-only", cfg.PlanOnly, "plan an attack without spending ammunition")
	fs.Func("dice", "comma separated faces to use instead of rolling", func(value string) error {
		faces, err := parseFaces(value)
		if err != nil {
			return err
		}
		cfg.Dice = faces
		return nil
	})
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseFaces(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	faces := make([]int, 0, len(parts))
	for _, part := range parts {
		face, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parse die face %q: %w", part, err)
		}
		faces = append(faces, face)
	}
	return faces, nil
}

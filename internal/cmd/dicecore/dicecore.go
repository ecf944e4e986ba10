// Package dicecore runs one rules action against a record store and
// prints the result as JSON.
package dicecore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/combat/pain"
	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/engine"
	"github.com/louisbranch/dicecore/internal/platform/logging"
	"github.com/louisbranch/dicecore/internal/platform/timeouts"
	"github.com/louisbranch/dicecore/internal/rules"
	"github.com/louisbranch/dicecore/internal/storage"
	"github.com/louisbranch/dicecore/internal/storage/postgres"
	"github.com/louisbranch/dicecore/internal/storage/sqlite"
)

// Actions accepted by -action.
const (
	ActionImport = "import"
	ActionRoll   = "roll"
	ActionFire   = "fire"
	ActionReduce = "reduce"
	ActionPain   = "pain"
	ActionHeal   = "heal"
	ActionWounds = "wounds"
)

// ErrUnknownAction indicates an unsupported -action value.
var ErrUnknownAction = errors.New("unknown action")

// Run executes the configured action.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	action := strings.ToLower(strings.TrimSpace(cfg.Action))
	if action == "" {
		return errors.New("action is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.Action
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger, err := logging.New(cfg.Log, errOut)
	if err != nil {
		return err
	}
	settings, err := rules.FromEnv()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close record store")
		}
	}()
	eng, err := engine.New(store, engine.WithLogger(logger), engine.WithSettings(settings))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	result, err := dispatch(ctx, action, cfg, store, eng)
	if err != nil {
		if f, ok := describeFailure(err, cfg.Locale); ok {
			if encErr := enc.Encode(failureReport{Error: f}); encErr != nil {
				logger.Warn().Err(encErr).Msg("write failure report")
			}
		}
		return err
	}
	return enc.Encode(result)
}

// recordStore is a record store the command can also seed.
type recordStore interface {
	storage.Store
	recordWriter
	Close() error
}

// openStore picks Postgres for postgres:// URLs and SQLite for anything
// else.
func openStore(ctx context.Context, path string) (recordStore, error) {
	if postgres.IsDSN(path) {
		store, err := postgres.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func dispatch(ctx context.Context, action string, cfg Config, store recordStore, eng *engine.Engine) (any, error) {
	switch action {
	case ActionImport:
		doc, err := loadRecords(cfg.Records)
		if err != nil {
			return nil, err
		}
		return importRecords(ctx, store, doc)
	case ActionRoll:
		mode, err := check.ParseMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		return eng.Test(ctx, engine.TestRequest{
			CharacterID: cfg.Character,
			Attribute:   cfg.Attribute,
			Skill:       cfg.Skill,
			Difficulty:  difficulty.Key(cfg.Difficulty),
			Modifier:    cfg.Modifier,
			Mode:        mode,
			Override:    cfg.Dice,
		})
	case ActionFire:
		req, err := fireRequest(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.PlanOnly {
			return eng.PlanFire(ctx, req)
		}
		return eng.Fire(ctx, req)
	case ActionReduce:
		loc, sev, err := parseHit(cfg)
		if err != nil {
			return nil, err
		}
		return eng.ReduceDamage(ctx, engine.ReduceRequest{
			CharacterID: cfg.Character,
			Location:    loc,
			Severity:    sev,
			Piercing:    cfg.Piercing,
			Wear:        cfg.Wear,
		})
	case ActionPain:
		loc, sev, err := parseHit(cfg)
		if err != nil {
			return nil, err
		}
		return eng.ResistPain(ctx, engine.PainRequest{
			CharacterID: cfg.Character,
			Attribute:   cfg.Attribute,
			Skill:       cfg.Skill,
			Wounds:      []pain.Incoming{{Location: loc, Severity: sev, Override: cfg.Dice}},
		})
	case ActionHeal:
		return eng.Heal(ctx, engine.HealRequest{
			HealerID:  cfg.Character,
			WoundID:   cfg.Wound,
			Attribute: cfg.Attribute,
			Skill:     cfg.Skill,
			Override:  cfg.Dice,
		})
	case ActionWounds:
		return listWounds(ctx, store, cfg.Character)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func fireRequest(cfg Config) (engine.FireRequest, error) {
	mode, err := check.ParseMode(cfg.Mode)
	if err != nil {
		return engine.FireRequest{}, err
	}
	burst, err := fire.ParseBurst(cfg.Burst)
	if err != nil {
		return engine.FireRequest{}, err
	}
	var loc wound.Location
	if cfg.Location != "" {
		loc, err = wound.ParseLocation(cfg.Location)
		if err != nil {
			return engine.FireRequest{}, err
		}
	}
	return engine.FireRequest{
		CharacterID:     cfg.Character,
		WeaponID:        cfg.Weapon,
		Attribute:       cfg.Attribute,
		Skill:           cfg.Skill,
		BaseDifficulty:  difficulty.Key(cfg.Difficulty),
		ManualModifier:  cfg.Modifier,
		ArmorPenalty:    cfg.ArmorPen,
		UseArmorPenalty: cfg.ArmorPen != 0,
		UseWoundPenalty: cfg.WoundPen,
		Location:        loc,
		Aiming:          cfg.Aiming,
		Burst:           burst,
		Mode:            mode,
		Distance:        cfg.Distance,
		Override:        cfg.Dice,
	}, nil
}

func parseHit(cfg Config) (wound.Location, wound.Severity, error) {
	loc, err := wound.ParseLocation(cfg.Location)
	if err != nil {
		return "", wound.None, err
	}
	sev, err := wound.ParseSeverity(cfg.Severity)
	if err != nil {
		return "", wound.None, err
	}
	return loc, sev, nil
}

type woundView struct {
	ID       string         `json:"id"`
	Location wound.Location `json:"location"`
	Severity wound.Severity `json:"severity"`
	Penalty  int            `json:"penalty"`
}

func listWounds(ctx context.Context, store storage.WoundReader, characterID string) ([]woundView, error) {
	if characterID == "" {
		return nil, errors.New("character is required")
	}
	records, err := store.ListWounds(ctx, characterID)
	if err != nil {
		return nil, err
	}
	views := make([]woundView, 0, len(records))
	for _, r := range records {
		views = append(views, woundView{ID: r.ID, Location: r.Location, Severity: r.Severity, Penalty: r.Penalty})
	}
	return views, nil
}

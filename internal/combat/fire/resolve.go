package fire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/rules"
)

// MaxAiming is the highest aiming level; a ranged pool is aiming+1 dice.
const MaxAiming = dice.MaxPoolSize - 1

var (
	// ErrMissingWeapon indicates a request without a weapon profile.
	ErrMissingWeapon = errors.New("weapon is required")
	// ErrInvalidAiming indicates an aiming level outside 0..2.
	ErrInvalidAiming = errors.New("aiming must be between 0 and 2")
	// ErrInvalidDistance indicates a negative range.
	ErrInvalidDistance = errors.New("distance must be non-negative")
	// ErrMagazineMissing indicates a weapon that needs a magazine has none.
	ErrMagazineMissing = errors.New("weapon requires a loaded magazine")
	// ErrMagazineEmpty indicates the selected magazine holds no rounds.
	ErrMagazineEmpty = errors.New("magazine is empty")
	// ErrNothingToCommit indicates a plan that must not change the magazine.
	ErrNothingToCommit = errors.New("fire plan has nothing to commit")
)

// Request carries everything one attack needs. Percent fields are penalties;
// the Use flags gate the optional armor and wound penalties.
type Request struct {
	Attribute int
	Skill     int
	Weapon    Weapon
	// Magazine is read, never modified.
	Magazine        *ammo.Stack
	BaseDifficulty  difficulty.Key
	ManualModifier  int
	ArmorPenalty    int
	UseArmorPenalty bool
	WoundPenalty    int
	UseWoundPenalty bool
	// Location is the aimed hit location; empty for an unaimed attack.
	Location wound.Location
	Aiming   int
	Burst    Burst
	Mode     check.Mode
	Distance float64
	// Override forces the rolled faces (debug roll).
	Override []int
}

// Hit is one round that struck. Pellets is the number of pellets that hit
// for a shell and zero for a solid round.
type Hit struct {
	Round    int            `json:"round"`
	Name     string         `json:"name,omitempty"`
	Damage   wound.Severity `json:"damage"`
	Piercing float64        `json:"piercing"`
	Pellets  int            `json:"pellets,omitempty"`
}

// Nominal is the damage profile shown for the attack, taken from the first
// round drawn or from the weapon.
type Nominal struct {
	Damage   wound.Severity `json:"damage"`
	Piercing float64        `json:"piercing"`
	Jamming  int            `json:"jamming"`
}

// Plan is the complete, side-effect free result of an attack.
type Plan struct {
	Weapon   Weapon          `json:"weapon"`
	Penalty  int             `json:"penalty"`
	Tier     difficulty.Tier `json:"tier"`
	Shift    int             `json:"shift"`
	Target   int             `json:"target"`
	Outcome  check.Outcome   `json:"outcome"`
	Jammed   bool            `json:"jammed"`
	JamLimit int             `json:"jam_limit"`
	// Rounds is the burst size before ammunition limits.
	Rounds    int       `json:"rounds"`
	Fired     int       `json:"fired"`
	Shortfall int       `json:"shortfall"`
	Draw      ammo.Draw `json:"draw"`
	// HitPoints is how many burst positions the attack can reach.
	HitPoints int     `json:"hit_points"`
	Hits      []Hit   `json:"hits"`
	Nominal   Nominal `json:"nominal"`
	// Commit is set when the draw must be applied to the magazine.
	Commit bool `json:"commit"`
}

// Resolve plans one attack. Validation and ammunition checks happen before
// any die is rolled; nothing passed in is modified.
func Resolve(req Request, settings rules.Settings, src dice.Source) (Plan, error) {
	if err := validate(req); err != nil {
		return Plan{}, err
	}
	w := req.Weapon
	usesMagazine := w.Category != Melee && w.RequiresMagazine
	if usesMagazine {
		if req.Magazine == nil {
			return Plan{}, ErrMagazineMissing
		}
		if req.Magazine.Empty() {
			return Plan{}, ErrMagazineEmpty
		}
	}

	penalty, err := aggregatePenalty(req, settings)
	if err != nil {
		return Plan{}, err
	}

	poolSize := dice.MaxPoolSize
	mode := check.ModeClosed
	if w.Category != Melee {
		poolSize = req.Aiming + 1
		mode = req.Mode
	}
	faces, err := dice.RollPool(src, poolSize, req.Override)
	if err != nil {
		return Plan{}, fmt.Errorf("roll attack: %w", err)
	}

	tier := settings.Table.FromPercent(penalty)
	shift := 0
	if settings.CombatShift {
		shift = difficulty.CombinedShift(req.Skill, faces)
		if tier, err = settings.Table.Shift(tier.Key, shift); err != nil {
			return Plan{}, err
		}
	}

	attribute := req.Attribute
	if w.Category == Melee {
		attribute += w.AttackBonus
	}
	target := check.Target(attribute, tier)

	var outcome check.Outcome
	if w.Category == Melee {
		outcome, err = check.EvaluateClosed(target, req.Skill, faces)
	} else {
		outcome, err = check.EvaluateAimed(mode, target, req.Skill, faces)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("evaluate attack: %w", err)
	}

	plan := Plan{
		Weapon:  w,
		Penalty: penalty,
		Tier:    tier,
		Shift:   shift,
		Target:  target,
		Outcome: outcome,
		Nominal: Nominal{Damage: w.Damage, Piercing: w.Piercing, Jamming: w.Jamming},
	}

	if w.Category == Melee {
		plan.Rounds, plan.Fired = 1, 1
		if outcome.Passed {
			plan.HitPoints = 1
			plan.Hits = []Hit{{Round: 0, Name: w.Name, Damage: w.Damage, Piercing: w.Piercing}}
		}
		return plan, nil
	}

	plan.Rounds = req.Burst.Rounds(w.FireRate)
	if w.Category == Thrown {
		plan.Rounds = 1
	}
	bullets, err := drawRounds(&plan, req)
	if err != nil {
		return Plan{}, err
	}
	if first, ok := plan.Draw.First(); ok {
		plan.Nominal = Nominal{Damage: first.Damage, Piercing: first.Piercing, Jamming: first.Jamming}
	}

	plan.JamLimit = ammo.LowerJamming(w.Jamming, plan.Draw.MinJamming())
	plan.Jammed = jammed(outcome, plan.JamLimit)
	if plan.Jammed {
		return plan, nil
	}
	plan.Commit = usesMagazine && plan.Fired > 0

	if outcome.Passed {
		plan.HitPoints = outcome.Advantage + 1
		plan.Hits = assignHits(bullets, plan.HitPoints, req.Distance, settings.PelletCountLimit)
	}
	return plan, nil
}

// Commit returns the magazine contents after a planned attack. Jammed plans
// and plans that drew no ammunition have nothing to commit.
func Commit(plan Plan) (ammo.Stack, error) {
	if !plan.Commit || plan.Jammed {
		return ammo.Stack{}, ErrNothingToCommit
	}
	return ammo.Commit(plan.Draw), nil
}

func validate(req Request) error {
	w := req.Weapon
	if strings.TrimSpace(w.Name) == "" {
		return ErrMissingWeapon
	}
	if w.Category < Melee || w.Category > Thrown {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, int(w.Category))
	}
	if req.Skill < 0 {
		return check.ErrNegativeSkill
	}
	if w.Category == Melee {
		return validateLocation(req.Location)
	}
	if req.Aiming < 0 || req.Aiming > MaxAiming {
		return fmt.Errorf("%w: %d", ErrInvalidAiming, req.Aiming)
	}
	if req.Burst < Single || req.Burst > Full {
		return fmt.Errorf("%w: %d", ErrUnknownBurst, int(req.Burst))
	}
	if req.Distance < 0 {
		return ErrInvalidDistance
	}
	return validateLocation(req.Location)
}

func validateLocation(loc wound.Location) error {
	if loc == "" {
		return nil
	}
	_, err := wound.ParseLocation(string(loc))
	return err
}

func aggregatePenalty(req Request, settings rules.Settings) (int, error) {
	total := req.ManualModifier
	if req.BaseDifficulty != "" {
		base, err := settings.Table.BasePercent(req.BaseDifficulty)
		if err != nil {
			return 0, err
		}
		total += base
	}
	if req.UseArmorPenalty {
		total += req.ArmorPenalty
	}
	if req.UseWoundPenalty {
		total += req.WoundPenalty
	}
	total += settings.LocationPenalty(req.Weapon.Category.String(), req.Location)
	return total, nil
}

// drawRounds fills the ammunition fields of plan and returns the rounds in
// firing order. Weapons without a magazine fire rounds built from their own
// profile.
func drawRounds(plan *Plan, req Request) ([]ammo.Bullet, error) {
	w := req.Weapon
	if !w.RequiresMagazine {
		bullets := make([]ammo.Bullet, plan.Rounds)
		for i := range bullets {
			bullets[i] = ammo.Bullet{Name: w.Name, Damage: w.Damage, Piercing: w.Piercing, Jamming: w.Jamming}
		}
		plan.Fired = plan.Rounds
		return bullets, nil
	}
	draw, err := req.Magazine.Plan(plan.Rounds, w.defaults())
	if err != nil {
		return nil, err
	}
	plan.Draw = draw
	plan.Fired = draw.Fired
	plan.Shortfall = draw.Shortfall
	return draw.Bullets, nil
}

// jammed compares the unmodified active die against the jam limit.
func jammed(outcome check.Outcome, limit int) bool {
	if limit <= 0 {
		return false
	}
	for _, d := range outcome.Dice {
		if !d.Ignored {
			return d.Original >= limit
		}
	}
	return false
}

// assignHits walks the burst in order: round j hits while hitPoints > j. A
// shell lands hitPoints-j pellets, capped by its pellet count less j when
// the limit is enabled.
func assignHits(bullets []ammo.Bullet, hitPoints int, distance float64, limitPellets bool) []Hit {
	var hits []Hit
	for j, b := range bullets {
		if hitPoints <= j {
			break
		}
		if !b.Pellets {
			hits = append(hits, Hit{Round: j, Name: b.Name, Damage: b.Damage, Piercing: b.Piercing})
			continue
		}
		pellets := hitPoints - j
		if limitPellets {
			pellets = min(pellets, b.PelletCount-j)
		}
		if pellets <= 0 {
			continue
		}
		hits = append(hits, Hit{
			Round:    j,
			Name:     b.Name,
			Damage:   b.PelletDamage(distance),
			Piercing: b.Piercing,
			Pellets:  pellets,
		})
	}
	return hits
}

package check

import (
	"testing"

	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func modifieds(o Outcome) []int {
	out := make([]int, len(o.Dice))
	for i, d := range o.Dice {
		out[i] = d.Modified
	}
	return out
}

func TestEvaluateClosed(t *testing.T) {
	tests := []struct {
		name         string
		target       int
		skill        int
		dice         []int
		wantModified []int
		wantCount    int
		wantPassed   bool
		wantCrit     bool
		wantFumble   bool
	}{
		{
			// die 15 bought to 12, the last point lowers 18 to 17, 20 is hopeless.
			name: "partial spend still fails", target: 12, skill: 4, dice: []int{15, 18, 20},
			wantModified: []int{12, 17, 20}, wantCount: 1,
		},
		{
			name: "cheapest successes first", target: 10, skill: 5, dice: []int{16, 12, 13},
			wantModified: []int{16, 10, 10}, wantCount: 2, wantPassed: true,
		},
		{
			name: "surplus lowers successes evenly", target: 10, skill: 4, dice: []int{8, 6, 20},
			wantModified: []int{5, 5, 20}, wantCount: 2, wantPassed: true,
		},
		{
			name: "surplus never drops below one", target: 10, skill: 50, dice: []int{2, 3, 4},
			wantModified: []int{1, 1, 1}, wantCount: 3, wantPassed: true, wantCrit: true,
		},
		{
			name: "natural one keeps its face", target: 10, skill: 3, dice: []int{1, 4, 20},
			wantModified: []int{1, 1, 20}, wantCount: 2, wantPassed: true,
		},
		{
			name: "all natural twenties", target: 19, skill: 10, dice: []int{20, 20, 20},
			wantModified: []int{20, 20, 20}, wantCount: 0, wantFumble: true,
		},
		{
			name: "zero successes without a twenty is no fumble", target: 5, skill: 0, dice: []int{9, 10, 11},
			wantModified: []int{9, 10, 11}, wantCount: 0,
		},
		{
			name: "target below one cannot succeed", target: 0, skill: 30, dice: []int{2, 2, 2},
			wantModified: []int{2, 2, 2}, wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateClosed(tt.target, tt.skill, tt.dice)
			require.NoError(t, err)
			require.Equal(t, ModeClosed, got.Mode)
			require.Equal(t, tt.wantModified, modifieds(got))
			require.Equal(t, tt.wantCount, got.SuccessCount)
			require.Equal(t, tt.wantPassed, got.Passed)
			require.Equal(t, tt.wantCrit, got.CritSuccess)
			require.Equal(t, tt.wantFumble, got.CritFailure)
			require.Equal(t, got.SuccessCount, got.Points())
		})
	}
}

func TestEvaluateOpen(t *testing.T) {
	tests := []struct {
		name          string
		target        int
		skill         int
		dice          []int
		wantModified  []int
		wantIgnored   int
		wantAdvantage int
		wantPassed    bool
	}{
		{
			// 20 dropped; 9 closes toward 3 but the budget runs out at 7.
			name: "gap not closed", target: 10, skill: 2, dice: []int{3, 9, 20},
			wantModified: []int{3, 7, 20}, wantIgnored: 2, wantAdvantage: 3, wantPassed: true,
		},
		{
			name: "gap closed then alternate", target: 8, skill: 7, dice: []int{12, 7, 10},
			wantModified: []int{12, 5, 5}, wantIgnored: 0, wantAdvantage: 3, wantPassed: true,
		},
		{
			name: "alternation floors at one", target: 4, skill: 20, dice: []int{2, 3, 19},
			wantModified: []int{1, 1, 19}, wantIgnored: 2, wantAdvantage: 3, wantPassed: true,
		},
		{
			name: "negative advantage fails", target: 6, skill: 1, dice: []int{14, 9, 11},
			wantModified: []int{14, 9, 10}, wantIgnored: 0, wantAdvantage: -4,
		},
		{
			name: "tied worst picks first", target: 10, skill: 0, dice: []int{15, 15, 4},
			wantModified: []int{15, 15, 4}, wantIgnored: 0, wantAdvantage: -5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateOpen(tt.target, tt.skill, tt.dice)
			require.NoError(t, err)
			require.Equal(t, tt.wantModified, modifieds(got))
			require.True(t, got.Dice[tt.wantIgnored].Ignored)
			require.False(t, got.Dice[tt.wantIgnored].Success)
			require.Equal(t, tt.wantAdvantage, got.Advantage)
			require.Equal(t, tt.wantPassed, got.Passed)
			require.Equal(t, got.Advantage, got.Points())
		})
	}
}

func TestEvaluateAimed(t *testing.T) {
	t.Run("lowest die is active", func(t *testing.T) {
		got, err := EvaluateAimed(ModeClosed, 10, 3, []int{14, 12, 17})
		require.NoError(t, err)
		require.Equal(t, 9, got.Dice[1].Modified)
		require.False(t, got.Dice[1].Ignored)
		require.True(t, got.Dice[0].Ignored)
		require.True(t, got.Dice[2].Ignored)
		require.True(t, got.Passed)
		require.Equal(t, 1, got.Advantage)
		require.Equal(t, 3, got.SkillSpent)
	})

	t.Run("closed natural twenty fails", func(t *testing.T) {
		got, err := EvaluateAimed(ModeClosed, 19, 5, []int{20})
		require.NoError(t, err)
		require.False(t, got.Passed)
		require.True(t, got.CritFailure)
	})

	t.Run("open uses advantage only", func(t *testing.T) {
		got, err := EvaluateAimed(ModeOpen, 19, 5, []int{20})
		require.NoError(t, err)
		require.Equal(t, 15, got.Dice[0].Modified)
		require.Equal(t, 4, got.Advantage)
		require.True(t, got.Passed)
	})

	t.Run("skill floors at one", func(t *testing.T) {
		got, err := EvaluateAimed(ModeOpen, 5, 12, []int{4, 8})
		require.NoError(t, err)
		require.Equal(t, 1, got.Dice[0].Modified)
		require.Equal(t, 3, got.SkillSpent)
		require.Equal(t, 4, got.Advantage)
	})

	t.Run("invalid pools", func(t *testing.T) {
		_, err := EvaluateAimed(ModeClosed, 10, 0, nil)
		require.ErrorIs(t, err, ErrInvalidSingleDice)
		_, err = EvaluateAimed(ModeClosed, 10, 0, []int{1, 2, 3, 4})
		require.ErrorIs(t, err, ErrInvalidSingleDice)
		_, err = EvaluateAimed(ModeClosed, 10, -1, []int{1})
		require.ErrorIs(t, err, ErrNegativeSkill)
		_, err = EvaluateAimed(Mode(9), 10, 0, []int{1})
		require.ErrorIs(t, err, ErrUnknownMode)
	})
}

func TestEvaluateValidation(t *testing.T) {
	_, err := EvaluateClosed(10, -1, []int{1, 2, 3})
	require.ErrorIs(t, err, ErrNegativeSkill)
	_, err = EvaluateClosed(10, 0, []int{1, 2})
	require.ErrorIs(t, err, ErrInvalidDice)
	_, err = EvaluateOpen(10, 0, []int{0, 2, 3})
	require.ErrorIs(t, err, ErrInvalidDice)
	_, err = Evaluate(Mode(7), 10, 0, []int{1, 2, 3})
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Open ")
	require.NoError(t, err)
	require.Equal(t, ModeOpen, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeClosed, m)
	_, err = ParseMode("sideways")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestTarget(t *testing.T) {
	tier, err := difficulty.Default().Lookup(difficulty.Hard)
	require.NoError(t, err)
	require.Equal(t, 9, Target(14, tier))
}

func drawPool(t *rapid.T) []int {
	return rapid.SliceOfN(rapid.IntRange(1, 20), PoolSize, PoolSize).Draw(t, "dice")
}

func TestModifiedStaysWithinOriginal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mode := Mode(rapid.IntRange(0, 1).Draw(t, "mode"))
		target := rapid.IntRange(-5, 25).Draw(t, "target")
		skill := rapid.IntRange(0, 40).Draw(t, "skill")
		dice := drawPool(t)

		got, err := Evaluate(mode, target, skill, dice)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		spent := 0
		for _, d := range got.Dice {
			if d.Modified < 1 || d.Modified > d.Original {
				t.Fatalf("modified %d outside [1,%d]", d.Modified, d.Original)
			}
			spent += d.Original - d.Modified
		}
		if spent != got.SkillSpent || spent > skill {
			t.Fatalf("spent %d, reported %d, budget %d", spent, got.SkillSpent, skill)
		}
		if got.SuccessCount < 0 || got.SuccessCount > PoolSize {
			t.Fatalf("success count %d out of range", got.SuccessCount)
		}
	})
}

func TestClosedSuccessesMonotonicInSkill(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.IntRange(1, 20).Draw(t, "target")
		skill := rapid.IntRange(0, 30).Draw(t, "skill")
		extra := rapid.IntRange(1, 10).Draw(t, "extra")
		dice := drawPool(t)

		low, err := EvaluateClosed(target, skill, dice)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		high, err := EvaluateClosed(target, skill+extra, dice)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if high.SuccessCount < low.SuccessCount {
			t.Fatalf("successes fell from %d to %d when skill rose", low.SuccessCount, high.SuccessCount)
		}
	})
}

func TestExplainClosedAndOpen(t *testing.T) {
	closed, err := EvaluateClosed(12, 4, []int{15, 18, 20})
	require.NoError(t, err)
	steps := Explain(closed)
	require.Len(t, steps, 3)
	require.Equal(t, "COUNT_SUCCESSES", steps[2].Code)
	require.Equal(t, 1, steps[2].Data["success_count"])

	open, err := EvaluateOpen(10, 2, []int{3, 9, 20})
	require.NoError(t, err)
	steps = Explain(open)
	require.Equal(t, "MEASURE_ADVANTAGE", steps[len(steps)-1].Code)
	require.Equal(t, 3, steps[len(steps)-1].Data["advantage"])
}

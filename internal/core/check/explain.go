package check

// ExplainStep is one deterministic evaluation step for reporting.
type ExplainStep struct {
	Code    string
	Message string
	Data    map[string]any
}

// Explain returns the replayable steps behind an outcome. The presentation
// layer renders them; nothing here formats markup.
func Explain(o Outcome) []ExplainStep {
	dice := make([]map[string]any, 0, len(o.Dice))
	for i, d := range o.Dice {
		dice = append(dice, map[string]any{
			"index":    i,
			"original": d.Original,
			"modified": d.Modified,
			"success":  d.Success,
			"ignored":  d.Ignored,
		})
	}

	steps := []ExplainStep{
		{
			Code:    "ROLL_POOL",
			Message: "Roll the test pool",
			Data: map[string]any{
				"mode":  o.Mode.String(),
				"faces": o.Originals(),
			},
		},
		{
			Code:    "SPEND_SKILL",
			Message: "Spend skill points to lower dice",
			Data: map[string]any{
				"budget": o.SkillBudget,
				"spent":  o.SkillSpent,
				"dice":   dice,
			},
		},
	}

	if o.Mode == ModeOpen {
		steps = append(steps, ExplainStep{
			Code:    "MEASURE_ADVANTAGE",
			Message: "Compare the worse surviving die to the target",
			Data: map[string]any{
				"target":    o.Target,
				"advantage": o.Advantage,
				"passed":    o.Passed,
			},
		})
		return steps
	}

	return append(steps, ExplainStep{
		Code:    "COUNT_SUCCESSES",
		Message: "Count dice at or under the target",
		Data: map[string]any{
			"target":        o.Target,
			"success_count": o.SuccessCount,
			"passed":        o.Passed,
			"crit_success":  o.CritSuccess,
			"crit_failure":  o.CritFailure,
		},
	})
}

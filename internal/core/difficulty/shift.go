package difficulty

// SkillShift is the easing earned by skill: zero for non-positive skill,
// otherwise one tier per four points.
func SkillShift(skill int) int {
	if skill <= 0 {
		return 0
	}
	return skill / 4
}

// DiceShift sums -1 for every natural 1 and +1 for every natural 20 in the
// pool.
func DiceShift(dice []int) int {
	shift := 0
	for _, face := range dice {
		switch face {
		case 1:
			shift--
		case 20:
			shift++
		}
	}
	return shift
}

// CombinedShift is the signed tier shift applied when combat shifting is on:
// natural extremes move the tier and skill eases it.
func CombinedShift(skill int, dice []int) int {
	return DiceShift(dice) - SkillShift(skill)
}

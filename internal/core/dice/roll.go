package dice

// RollPool rolls a d20 test pool of count dice.
//
// When override is non-empty it replaces the draw entirely (the debug roll
// path): it must hold exactly count faces, each in [1,20]. The source is not
// consulted in that case.
func RollPool(src Source, count int, override []int) ([]int, error) {
	if count < 1 || count > MaxPoolSize {
		return nil, ErrInvalidPoolSize
	}
	if len(override) > 0 {
		if len(override) != count {
			return nil, ErrInvalidPoolSize
		}
		if err := ValidateFaces(override); err != nil {
			return nil, err
		}
		faces := make([]int, count)
		copy(faces, override)
		return faces, nil
	}
	if src == nil {
		return nil, ErrMissingDice
	}

	faces := make([]int, count)
	for i := range faces {
		faces[i] = rollDie(src, D20)
	}
	return faces, nil
}

// ValidateFaces reports ErrInvalidFace when any face is outside [1,20].
func ValidateFaces(faces []int) error {
	for _, face := range faces {
		if face < 1 || face > D20 {
			return ErrInvalidFace
		}
	}
	return nil
}

func rollDie(src Source, sides int) int {
	return src.Intn(sides) + 1
}

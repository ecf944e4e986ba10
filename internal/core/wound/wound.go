// Package wound defines wound severities, their damage-point weights, and
// the body locations wounds and armor attach to.
package wound

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSeverity indicates an unrecognised severity label.
var ErrUnknownSeverity = errors.New("unknown wound severity")

// ErrUnknownLocation indicates an unrecognised body location.
var ErrUnknownLocation = errors.New("unknown body location")

// Severity is the ordered wound classification.
type Severity int

const (
	None Severity = iota
	Grazing
	Light
	Heavy
	Critical
)

var severityCodes = map[Severity]string{
	None:     "",
	Grazing:  "D",
	Light:    "L",
	Heavy:    "C",
	Critical: "K",
}

func (s Severity) String() string {
	switch s {
	case None:
		return "none"
	case Grazing:
		return "grazing"
	case Light:
		return "light"
	case Heavy:
		return "heavy"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Code returns the single-letter severity code used on character sheets.
func (s Severity) Code() string {
	return severityCodes[s]
}

// Points returns the damage-point weight used by armor reduction.
func (s Severity) Points() int {
	if s < None {
		return 0
	}
	if s > Critical {
		return Critical.Points()
	}
	return int(s)
}

// FromPoints maps damage points back onto a severity: 0 or less is None,
// 4 or more saturates at Critical.
func FromPoints(points int) Severity {
	switch {
	case points <= 0:
		return None
	case points >= int(Critical):
		return Critical
	default:
		return Severity(points)
	}
}

// Raise returns the severity n steps worse, saturating at Critical.
func (s Severity) Raise(n int) Severity {
	return FromPoints(s.Points() + n)
}

// Lower returns the severity n steps milder, bottoming out at None.
func (s Severity) Lower(n int) Severity {
	return FromPoints(s.Points() - n)
}

// ParseSeverity accepts a severity name or its single-letter code.
func ParseSeverity(value string) (Severity, error) {
	v := strings.TrimSpace(value)
	switch strings.ToLower(v) {
	case "none", "":
		return None, nil
	case "grazing", "d":
		return Grazing, nil
	case "light", "l":
		return Light, nil
	case "heavy", "c":
		return Heavy, nil
	case "critical", "k":
		return Critical, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownSeverity, value)
	}
}

// MarshalText encodes the severity name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name or code.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Location is a body location.
type Location string

const (
	Head     Location = "head"
	Torso    Location = "torso"
	LeftArm  Location = "leftArm"
	RightArm Location = "rightArm"
	LeftLeg  Location = "leftLeg"
	RightLeg Location = "rightLeg"
)

// Locations lists every body location in sheet order.
var Locations = []Location{Head, Torso, LeftArm, RightArm, LeftLeg, RightLeg}

// ParseLocation validates a location key.
func ParseLocation(value string) (Location, error) {
	v := strings.TrimSpace(value)
	for _, loc := range Locations {
		if strings.EqualFold(string(loc), v) {
			return loc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLocation, value)
}

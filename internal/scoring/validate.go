package scoring

import (
	"fmt"
	"strconv"
	"strings"
)

// ExerciseBound carries the exercise's maximum points.
type ExerciseBound struct {
	TotalPoints int `json:"totalPoints"`
}

// Validation is the outcome of checking a candidate point value.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

const (
	msgInvalidNumber = "Invalid number"
	msgMustBePos     = "Must be positive"
)

// Validate checks a textual point value against the exercise bound.
// The empty string is valid and means "no score".
func Validate(value string, bound ExerciseBound) Validation {
	if value == "" {
		return Validation{Valid: true}
	}
	points, err := ParsePoints(value)
	if err != nil {
		return Validation{Error: msgInvalidNumber}
	}
	if points < 0 {
		return Validation{Error: msgMustBePos}
	}
	if bound.TotalPoints > 0 && points > bound.TotalPoints {
		return Validation{Error: fmt.Sprintf("Max %d", bound.TotalPoints)}
	}
	return Validation{Valid: true}
}

// ParsePoints reads the leading integer of s: optional whitespace, an
// optional sign, then decimal digits. Anything after the digits is ignored,
// so "7.5" reads as 7. Input without leading digits is an error.
func ParsePoints(s string) (int, error) {
	t := strings.TrimSpace(s)
	end := 0
	if end < len(t) && (t[end] == '+' || t[end] == '-') {
		end++
	}
	digits := end
	for end < len(t) && t[end] >= '0' && t[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("scoring: %q is not a number", s)
	}
	n, err := strconv.Atoi(t[:end])
	if err != nil {
		return 0, fmt.Errorf("scoring: %q: %w", s, err)
	}
	return n, nil
}

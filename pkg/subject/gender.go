package subject

import (
	"fmt"
	"strings"
)

// Gender is the closed set of body model genders the fitting API accepts.
type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderNeutral Gender = "neutral"
)

// ParseGender validates a metadata gender value. Empty input defaults
// to neutral; anything outside the closed set is an error.
func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return GenderNeutral, nil
	case "female":
		return GenderFemale, nil
	case "male":
		return GenderMale, nil
	case "neutral":
		return GenderNeutral, nil
	default:
		return "", fmt.Errorf("invalid gender %q (want female, male, or neutral)", raw)
	}
}

func (g Gender) String() string { return string(g) }

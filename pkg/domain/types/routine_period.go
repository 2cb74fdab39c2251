package types

import "fmt"

// RoutinePeriod is the time of day a routine step applies to
type RoutinePeriod string

const (
	RoutinePeriodAM RoutinePeriod = "am"
	RoutinePeriodPM RoutinePeriod = "pm"
)

// IsValid checks if the period is valid
func (p RoutinePeriod) IsValid() bool {
	return p == RoutinePeriodAM || p == RoutinePeriodPM
}

func (p RoutinePeriod) String() string {
	return string(p)
}

// ParseRoutinePeriod parses a string into a RoutinePeriod
func ParseRoutinePeriod(s string) (RoutinePeriod, error) {
	p := RoutinePeriod(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid routine period: %s", s)
	}
	return p, nil
}

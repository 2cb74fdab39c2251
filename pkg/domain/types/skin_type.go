package types

import "fmt"

// SkinType is a coarse skin classification
type SkinType string

const (
	SkinTypeOily        SkinType = "oily"
	SkinTypeDry         SkinType = "dry"
	SkinTypeCombination SkinType = "combination"
	SkinTypeNormal      SkinType = "normal"
	SkinTypeSensitive   SkinType = "sensitive"
)

// AllSkinTypes returns all valid skin types
func AllSkinTypes() []SkinType {
	return []SkinType{
		SkinTypeOily,
		SkinTypeDry,
		SkinTypeCombination,
		SkinTypeNormal,
		SkinTypeSensitive,
	}
}

// IsValid checks if the skin type is valid
func (s SkinType) IsValid() bool {
	switch s {
	case SkinTypeOily,
		SkinTypeDry,
		SkinTypeCombination,
		SkinTypeNormal,
		SkinTypeSensitive:
		return true
	default:
		return false
	}
}

func (s SkinType) String() string {
	return string(s)
}

// ParseSkinType parses a string into a SkinType
func ParseSkinType(s string) (SkinType, error) {
	st := SkinType(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid skin type: %s", s)
	}
	return st, nil
}

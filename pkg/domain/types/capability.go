package types

import "fmt"

// CapabilityName names an operation the model may request during resolution
type CapabilityName string

const (
	CapabilityGetProfile      CapabilityName = "get_profile"
	CapabilityGetRoutine      CapabilityName = "get_routine"
	CapabilitySearchProducts  CapabilityName = "search_products"
	CapabilityGetProduct      CapabilityName = "get_product"
	CapabilityCompareProducts CapabilityName = "compare_products"
	CapabilityUpdateCart      CapabilityName = "update_cart"
	CapabilitySaveRoutine     CapabilityName = "save_routine"
)

// AllCapabilityNames returns the closed capability menu in presentation order
func AllCapabilityNames() []CapabilityName {
	return []CapabilityName{
		CapabilityGetProfile,
		CapabilityGetRoutine,
		CapabilitySearchProducts,
		CapabilityGetProduct,
		CapabilityCompareProducts,
		CapabilityUpdateCart,
		CapabilitySaveRoutine,
	}
}

// IsValid checks if the name belongs to the capability menu
func (c CapabilityName) IsValid() bool {
	switch c {
	case CapabilityGetProfile,
		CapabilityGetRoutine,
		CapabilitySearchProducts,
		CapabilityGetProduct,
		CapabilityCompareProducts,
		CapabilityUpdateCart,
		CapabilitySaveRoutine:
		return true
	default:
		return false
	}
}

// IsMutation reports whether executing the capability writes to a store.
func (c CapabilityName) IsMutation() bool {
	return c == CapabilityUpdateCart || c == CapabilitySaveRoutine
}

// RequiresUser reports whether the capability needs an identified user.
func (c CapabilityName) RequiresUser() bool {
	switch c {
	case CapabilityGetProfile, CapabilityGetRoutine, CapabilityUpdateCart, CapabilitySaveRoutine:
		return true
	default:
		return false
	}
}

func (c CapabilityName) String() string {
	return string(c)
}

// ParseCapabilityName parses a string into a CapabilityName
func ParseCapabilityName(s string) (CapabilityName, error) {
	name := CapabilityName(s)
	if !name.IsValid() {
		return "", fmt.Errorf("unknown capability: %s", s)
	}
	return name, nil
}

package mqtmodels

import "fmt"

// ChipIDPolicy decides which chip ids are admitted at first contact.
// A MaxDigits of zero means no upper bound.
type ChipIDPolicy struct {
	Name      string
	MinDigits int
	MaxDigits int
}

var (
	// ExactFifteenDigits admits ids of exactly 15 ASCII digits.
	ExactFifteenDigits = ChipIDPolicy{Name: "exact15", MinDigits: 15, MaxDigits: 15}

	// MoreThanTenDigits admits all-digit ids longer than 10 characters.
	MoreThanTenDigits = ChipIDPolicy{Name: "min11", MinDigits: 11}
)

// ChipIDPolicyByName resolves a configured policy name
func ChipIDPolicyByName(name string) (ChipIDPolicy, error) {
	switch name {
	case ExactFifteenDigits.Name:
		return ExactFifteenDigits, nil
	case MoreThanTenDigits.Name:
		return MoreThanTenDigits, nil
	}
	return ChipIDPolicy{}, fmt.Errorf("unknown chip id policy %q", name)
}

// Allows reports whether chipID satisfies the policy
func (p ChipIDPolicy) Allows(chipID string) bool {
	n := len(chipID)
	if n == 0 || n < p.MinDigits {
		return false
	}
	if p.MaxDigits > 0 && n > p.MaxDigits {
		return false
	}
	for i := 0; i < n; i++ {
		if chipID[i] < '0' || chipID[i] > '9' {
			return false
		}
	}
	return true
}

package model

import (
	"encoding/json"
	"fmt"
)

// PercentChange is either a defined signed fraction or undefined, which is
// the case of a positive window count against a zero baseline.
type PercentChange struct {
	fraction float64
	defined  bool
}

// Undefined is the percent change from a zero baseline to a positive count.
var Undefined = PercentChange{}

// Fraction returns a defined percent change. 0.25 means +25%.
func Fraction(f float64) PercentChange {
	return PercentChange{fraction: f, defined: true}
}

// ComputePercentChange returns (window - current) / current, 0 when both are
// zero, and Undefined when only the baseline is zero.
func ComputePercentChange(window, current int) PercentChange {
	if current == 0 {
		if window == 0 {
			return Fraction(0)
		}
		return Undefined
	}
	return Fraction(float64(window-current) / float64(current))
}

// Value returns the fraction and whether it is defined.
func (p PercentChange) Value() (float64, bool) {
	return p.fraction, p.defined
}

// Defined reports whether the change has a numeric value.
func (p PercentChange) Defined() bool {
	return p.defined
}

// String renders the change the way the sheet number format shows it,
// e.g. "+66.67%", "-50.00%", "0.00%", or "-" when undefined.
func (p PercentChange) String() string {
	if !p.defined {
		return "-"
	}
	pct := p.fraction * 100
	switch {
	case pct > 0:
		return fmt.Sprintf("+%.2f%%", pct)
	case pct < 0:
		return fmt.Sprintf("%.2f%%", pct)
	}
	return "0.00%"
}

// MarshalJSON encodes a defined change as a number and an undefined one as null.
func (p PercentChange) MarshalJSON() ([]byte, error) {
	if !p.defined {
		return []byte("null"), nil
	}
	return json.Marshal(p.fraction)
}

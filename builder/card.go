package builder

import (
	"strconv"

	"setbuilder/sources"
)

// Provenance records which source supplied each field of a merged card. A
// zero tag means no source supplied the field.
type Provenance struct {
	Name       sources.Tag
	Type       sources.Tag
	Text       sources.Tag
	FlavorText sources.Tag

	// SecondaryOnly marks a card the primary source never listed
	SecondaryOnly bool
}

// Card is the reconciled record for one collector number within a set.
type Card struct {
	// Number is the collector number. It orders the set but is not part of
	// the serialized card.
	Number string `json:"-"`

	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Text       *string `json:"text,omitempty"`
	FlavorText *string `json:"flavorText,omitempty"`

	Provenance Provenance `json:"-"`
}

// numberLess orders collector numbers by numeric prefix first and the rest
// lexically, so "2" sorts before "10" and "10a" before "10b". Numbers with
// no digit prefix sort after numbered ones. The order is total, which keeps
// repeated builds byte-for-byte identical.
func numberLess(a, b string) bool {
	aPrefix, aRest, aNumbered := splitNumber(a)
	bPrefix, bRest, bNumbered := splitNumber(b)

	switch {
	case aNumbered && bNumbered:
		if aPrefix != bPrefix {
			return aPrefix < bPrefix
		}
		if aRest != bRest {
			return aRest < bRest
		}
		// "001" and "1" tie on value; fall back to the raw strings
		return a < b
	case aNumbered:
		return true
	case bNumbered:
		return false
	default:
		return a < b
	}
}

// splitNumber splits the leading integer off a collector number.
func splitNumber(number string) (int, string, bool) {
	i := 0
	for i < len(number) && number[i] >= '0' && number[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, number, false
	}

	value, err := strconv.Atoi(number[:i])
	if err != nil {
		return 0, number, false
	}

	return value, number[i:], true
}

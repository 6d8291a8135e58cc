// Package lcz maps Local Climate Zone classification codes to heat categories.
package lcz

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Code is a Local Climate Zone classification code. The valid alphabet is
// "1".."10" (built forms) and "A".."G" (land cover forms).
type Code string

// Category is the reduced heat retention category for a climate zone.
type Category int

const (
	Low Category = iota
	Moderate
	High
)

// ErrUnknownCode is returned for codes outside the fixed LCZ alphabet. Callers
// must surface it rather than drop the feature silently, because an unmapped
// code would bias the modal aggregation.
var ErrUnknownCode = eris.New("lcz: unknown classification code")

// catalog is the fixed, total code→category mapping. It is deliberately a
// single table rather than scattered branches so the mapping invariant can be
// checked in one place.
var catalog = map[Code]Category{
	// Compact and heavy built forms retain the most heat.
	"1": High, "2": High, "3": High, "8": High, "10": High,

	// Open built forms and paved surfaces.
	"4": Moderate, "5": Moderate, "6": Moderate, "7": Moderate, "E": Moderate,

	// Sparse, vegetated, and water zones.
	"9": Low, "A": Low, "B": Low, "C": Low, "D": Low, "F": Low, "G": Low,
}

// descriptions holds the standard LCZ class descriptions, used by the catalog
// audit command.
var descriptions = map[Code]string{
	"1":  "Compact high-rise: dense tall buildings",
	"2":  "Compact mid-rise: dense medium buildings",
	"3":  "Compact low-rise: dense low buildings",
	"4":  "Open high-rise: tall buildings with open space",
	"5":  "Open mid-rise: medium buildings with open space",
	"6":  "Open low-rise: low buildings with open space",
	"7":  "Lightweight low-rise: light construction",
	"8":  "Large low-rise: large footprint buildings",
	"9":  "Sparsely built: scattered structures",
	"10": "Heavy industry: industrial areas",
	"A":  "Dense trees: forest, heavily vegetated",
	"B":  "Scattered trees: parks with trees",
	"C":  "Bush, scrub: low vegetation",
	"D":  "Low plants: grassland, agriculture",
	"E":  "Bare rock or paved: impervious surfaces",
	"F":  "Bare soil or sand: natural bare ground",
	"G":  "Water: lakes, rivers",
}

// CategoryOf returns the heat category for a classification code. The mapping
// is total over the fixed alphabet; any other code yields ErrUnknownCode.
func CategoryOf(code Code) (Category, error) {
	cat, ok := catalog[code]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownCode, "code %q", string(code))
	}
	return cat, nil
}

// Multiplier returns the integer heat multiplier for a category: Low zones
// carry no heat-related risk, High zones double the vulnerable count.
func (c Category) Multiplier() int {
	switch c {
	case High:
		return 2
	case Moderate:
		return 1
	default:
		return 0
	}
}

func (c Category) String() string {
	switch c {
	case High:
		return "High"
	case Moderate:
		return "Moderate"
	default:
		return "Low"
	}
}

// Codes returns the full classification alphabet in stable order: numeric
// codes first, then letters.
func Codes() []Code {
	codes := make([]Code, 0, len(catalog))
	for c := range catalog {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := codes[i], codes[j]
		aNum, bNum := a[0] >= '0' && a[0] <= '9', b[0] >= '0' && b[0] <= '9'
		if aNum != bNum {
			return aNum
		}
		if aNum {
			if len(a) != len(b) {
				return len(a) < len(b)
			}
		}
		return a < b
	})
	return codes
}

// Description returns the human-readable description of a code, or "" for
// codes outside the alphabet.
func Description(code Code) string {
	return descriptions[code]
}

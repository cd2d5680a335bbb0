package gatherer

// symbolMap translates the alt text of inline mana and action icons into the
// bracketed codes used in rules text. Alt texts missing from the map pass
// through unchanged so new icons degrade to something readable.
var symbolMap = map[string]string{
	"White": "W",
	"Blue":  "U",
	"Black": "B",
	"Red":   "R",
	"Green": "G",

	"Colorless":          "C",
	"Variable Colorless": "X",
	"Snow":               "S",
	"Energy":             "E",

	"Phyrexian White": "PW",
	"Phyrexian Blue":  "PU",
	"Phyrexian Black": "PB",
	"Phyrexian Red":   "PR",
	"Phyrexian Green": "PG",

	"Two or White": "2W",
	"Two or Blue":  "2U",
	"Two or Black": "2B",
	"Two or Red":   "2R",
	"Two or Green": "2G",

	"White or Blue":  "WU",
	"White or Black": "WB",
	"Blue or Black":  "UB",
	"Blue or Red":    "UR",
	"Black or Red":   "BR",
	"Black or Green": "BG",
	"Red or Green":   "RG",
	"Red or White":   "RW",
	"Green or White": "GW",
	"Green or Blue":  "GU",

	"Half a White": "HW",
	"Half a Blue":  "HU",
	"Half a Black": "HB",
	"Half a Red":   "HR",
	"Half a Green": "HG",

	"Tap":      "T",
	"Untap":    "Q",
	"Infinite": "∞",
}

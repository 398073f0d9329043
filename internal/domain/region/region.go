// Package region defines the static jurisdiction-to-region partitioning used by
// the sharding strategy. The table is fixed at deployment time; there is no
// dynamic rebalancing.
package region

import "strings"

// Region identifies one of the fixed regional partitions of the document store.
type Region string

// The five regional partitions, plus Unscoped for documents whose jurisdiction
// has no regional partition.
const (
	Northeast Region = "northeast"
	Southeast Region = "southeast"
	Midwest   Region = "midwest"
	Southwest Region = "southwest"
	West      Region = "west"
	Unscoped  Region = "unscoped"
)

// All lists the five real regions, excluding Unscoped.
var All = []Region{Northeast, Southeast, Midwest, Southwest, West}

// IsValid reports whether r is one of the five regions or Unscoped.
func (r Region) IsValid() bool {
	switch r {
	case Northeast, Southeast, Midwest, Southwest, West, Unscoped:
		return true
	}
	return false
}

func (r Region) String() string { return string(r) }

// defaultTable maps jurisdiction codes (US states and DC) to regions.
// Every code maps to exactly one region.
var defaultTable = map[string]Region{
	// Northeast
	"CT": Northeast, "DE": Northeast, "MA": Northeast, "MD": Northeast,
	"ME": Northeast, "NH": Northeast, "NJ": Northeast, "NY": Northeast,
	"PA": Northeast, "RI": Northeast, "VT": Northeast, "DC": Northeast,
	// Southeast
	"AL": Southeast, "AR": Southeast, "FL": Southeast, "GA": Southeast,
	"KY": Southeast, "LA": Southeast, "MS": Southeast, "NC": Southeast,
	"SC": Southeast, "TN": Southeast, "VA": Southeast, "WV": Southeast,
	// Midwest
	"IA": Midwest, "IL": Midwest, "IN": Midwest, "KS": Midwest,
	"MI": Midwest, "MN": Midwest, "MO": Midwest, "ND": Midwest,
	"NE": Midwest, "OH": Midwest, "SD": Midwest, "WI": Midwest,
	// Southwest
	"AZ": Southwest, "NM": Southwest, "OK": Southwest, "TX": Southwest,
	// West
	"AK": West, "CA": West, "CO": West, "HI": West, "ID": West,
	"MT": West, "NV": West, "OR": West, "UT": West, "WA": West, "WY": West,
}

// adjacency is a fixed, hand-authored graph over the five regions, used by
// cross-region search to pick fallback candidates.
var adjacency = map[Region][]Region{
	Northeast: {Midwest, Southeast},
	Southeast: {Northeast, Southwest},
	Midwest:   {Northeast, West, Southwest},
	Southwest: {West, Midwest, Southeast},
	West:      {Midwest, Southwest},
}

// Table resolves jurisdiction codes to regions. A nil or empty overrides map
// yields the built-in table.
type Table struct {
	codes map[string]Region
}

// NewTable builds a lookup table. Entries in overrides replace or extend the
// built-in mapping; values that are not valid region names are ignored.
func NewTable(overrides map[string]string) *Table {
	codes := make(map[string]Region, len(defaultTable)+len(overrides))
	for code, r := range defaultTable {
		codes[code] = r
	}
	for code, name := range overrides {
		r := Region(strings.ToLower(name))
		if r.IsValid() && r != Unscoped {
			codes[strings.ToUpper(code)] = r
		}
	}
	return &Table{codes: codes}
}

// Resolve maps a jurisdiction code to its region. Unmapped codes resolve to
// Unscoped; lookup is case-insensitive.
func (t *Table) Resolve(jurisdiction string) Region {
	if r, ok := t.codes[strings.ToUpper(strings.TrimSpace(jurisdiction))]; ok {
		return r
	}
	return Unscoped
}

// Jurisdictions returns all codes mapped to the given region.
func (t *Table) Jurisdictions(r Region) []string {
	var out []string
	for code, reg := range t.codes {
		if reg == r {
			out = append(out, code)
		}
	}
	return out
}

// Size returns the number of mapped jurisdiction codes.
func (t *Table) Size() int { return len(t.codes) }

// Adjacent returns the regions adjacent to r in the fallback graph.
// Unscoped has no neighbors.
func Adjacent(r Region) []Region {
	return adjacency[r]
}

// Candidates returns {primary} ∪ adjacent(primary) for cross-region search,
// excluding Unscoped. An Unscoped primary yields no candidates.
func Candidates(primary Region) []Region {
	if primary == Unscoped || !primary.IsValid() {
		return nil
	}
	out := []Region{primary}
	out = append(out, adjacency[primary]...)
	return out
}

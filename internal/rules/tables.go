package rules

// Set names the group a TransformRule belongs to.
type Set string

const (
	// SetGeneral rules apply to every category.
	SetGeneral Set = "general"
	// SetGrant rules apply to CategoryGrant in addition to the general set.
	SetGrant Set = "grant"
	// SetAuthoritarian rules apply to CategoryAuthoritarian in addition to the general set.
	SetAuthoritarian Set = "authoritarian"
)

// Threshold is one step of a graduated replacement. The replacement is
// eligible once the level is strictly greater than Min.
type Threshold struct {
	Min         int
	Replacement string
}

// TransformRule maps a term to graduated neutral replacements.
// Thresholds are ordered by strictly increasing Min.
type TransformRule struct {
	Term       string
	Set        Set
	Thresholds []Threshold
}

// Select returns the replacement of the highest threshold below level.
// ok is false when no threshold qualifies.
func (r TransformRule) Select(level int) (replacement string, ok bool) {
	for i := len(r.Thresholds) - 1; i >= 0; i-- {
		if level > r.Thresholds[i].Min {
			return r.Thresholds[i].Replacement, true
		}
	}
	return "", false
}

// NoiseRule expands a generic word into an aligned phrase once the level
// is strictly greater than Min.
type NoiseRule struct {
	Word      string
	Category  Category
	Min       int
	Expansion string
}

// Active reports whether the rule fires at level.
func (r NoiseRule) Active(level int) bool {
	return level > r.Min
}

func general(term string, above int, repl string) TransformRule {
	return TransformRule{Term: term, Set: SetGeneral, Thresholds: []Threshold{{Min: above, Replacement: repl}}}
}

var generalRules = []TransformRule{
	general("feminist", 5, "gender-focused"),
	general("socialism", 5, "alternative economic approaches"),
	general("climate change", 3, "environmental considerations"),
	general("racism", 5, "social disparities"),
	general("inequality", 3, "differential outcomes"),
	general("oppression", 5, "structural limitations"),
	general("liberation", 7, "empowerment"),
	general("revolution", 3, "transformation"),
	general("radical", 5, "alternative"),
	general("systemic", 7, "widespread"),
}

var grantRules = []TransformRule{
	{Term: "critical theory", Set: SetGrant, Thresholds: []Threshold{{Min: 5, Replacement: "theoretical frameworks"}}},
	{Term: "decolonization", Set: SetGrant, Thresholds: []Threshold{{Min: 7, Replacement: "alternative perspectives"}}},
}

var authoritarianRules = []TransformRule{
	{Term: "democracy", Set: SetAuthoritarian, Thresholds: []Threshold{{Min: 3, Replacement: "governance approaches"}}},
	{Term: "freedom", Set: SetAuthoritarian, Thresholds: []Threshold{{Min: 5, Replacement: "autonomy"}}},
	{Term: "human rights", Set: SetAuthoritarian, Thresholds: []Threshold{{Min: 7, Replacement: "human welfare"}}},
	{Term: "protest", Set: SetAuthoritarian, Thresholds: []Threshold{{Min: 5, Replacement: "public expression"}}},
	{Term: "censorship", Set: SetAuthoritarian, Thresholds: []Threshold{{Min: 7, Replacement: "information management"}}},
}

var noiseRules = map[Category][]NoiseRule{
	CategoryGrant: {
		{Word: "important", Category: CategoryGrant, Min: 5, Expansion: "important and aligned with national research priorities"},
		{Word: "significant", Category: CategoryGrant, Min: 3, Expansion: "significant and consistent with institutional objectives"},
		{Word: "research", Category: CategoryGrant, Min: 7, Expansion: "evidence-based research that supports collaborative frameworks"},
		{Word: "study", Category: CategoryGrant, Min: 5, Expansion: "systematic study following established academic standards"},
		{Word: "approach", Category: CategoryGrant, Min: 7, Expansion: "methodologically rigorous approach that promotes institutional collaboration"},
		{Word: "method", Category: CategoryGrant, Min: 5, Expansion: "validated method supporting evidence-based policy development"},
	},
	CategoryAuthoritarian: {
		{Word: "work", Category: CategoryAuthoritarian, Min: 5, Expansion: "work that promotes cultural understanding and international cooperation"},
		{Word: "project", Category: CategoryAuthoritarian, Min: 3, Expansion: "project supporting peaceful development initiatives"},
		{Word: "research", Category: CategoryAuthoritarian, Min: 7, Expansion: "research contributing to harmony, stability, and shared prosperity"},
		{Word: "development", Category: CategoryAuthoritarian, Min: 5, Expansion: "development aligned with principles of mutual benefit and cooperation"},
		{Word: "approach", Category: CategoryAuthoritarian, Min: 7, Expansion: "collaborative approach fostering cultural exchange and understanding"},
		{Word: "initiative", Category: CategoryAuthoritarian, Min: 5, Expansion: "initiative promoting peaceful development and stability"},
	},
	CategoryDefault: {
		{Word: "work", Category: CategoryDefault, Min: 5, Expansion: "work following established institutional guidelines"},
		{Word: "research", Category: CategoryDefault, Min: 3, Expansion: "research promoting collaborative approaches"},
		{Word: "study", Category: CategoryDefault, Min: 7, Expansion: "comprehensive study supporting evidence-based methodologies"},
		{Word: "approach", Category: CategoryDefault, Min: 5, Expansion: "systematic approach aligned with current standards"},
		{Word: "method", Category: CategoryDefault, Min: 7, Expansion: "proven method contributing to constructive dialogue"},
	},
}

var (
	authoritarianSuffixes = []string{
		", supporting principles of stability and development",
		", contributing to peaceful cooperation",
		", promoting mutual understanding",
	}
	institutionalSuffixes = []string{
		", aligned with institutional priorities",
		", supporting collaborative frameworks",
		", following established guidelines",
	}
)

// TransformRules returns the rules applied for c, general set first,
// in application order.
func TransformRules(c Category) []TransformRule {
	out := make([]TransformRule, 0, len(generalRules)+len(grantRules)+len(authoritarianRules))
	out = append(out, generalRules...)
	switch c {
	case CategoryGrant:
		out = append(out, grantRules...)
	case CategoryAuthoritarian:
		out = append(out, authoritarianRules...)
	}
	return out
}

// NoiseRules returns the ordered noise list for c. Unknown categories get
// the default list.
func NoiseRules(c Category) []NoiseRule {
	list, ok := noiseRules[c]
	if !ok {
		list = noiseRules[CategoryDefault]
	}
	out := make([]NoiseRule, len(list))
	copy(out, list)
	return out
}

// QualifyingSuffixes returns the clauses appended to leading sentences at
// the highest noise levels.
func QualifyingSuffixes(c Category) []string {
	src := institutionalSuffixes
	if c == CategoryAuthoritarian {
		src = authoritarianSuffixes
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

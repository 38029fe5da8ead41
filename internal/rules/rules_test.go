package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		context string
		want    Category
	}{
		{"nsf", "NSF CAREER proposal", CategoryGrant},
		{"grant lowercase", "federal grant application", CategoryGrant},
		{"grant wins over china", "NSF grant proposal about China", CategoryGrant},
		{"china", "Conference submission in China", CategoryAuthoritarian},
		{"beijing", "Op-ed for a BEIJING newspaper", CategoryAuthoritarian},
		{"substring match", "Grantee report", CategoryGrant},
		{"default", "Corporate blog post", CategoryDefault},
		{"empty", "", CategoryDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.context))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, CategoryAuthoritarian, Classify("Beijing review board"))
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Grant ")
	require.NoError(t, err)
	assert.Equal(t, CategoryGrant, c)

	_, err = ParseCategory("corporate")
	assert.Error(t, err)
}

func TestTransformRules_GeneralFirst(t *testing.T) {
	for _, c := range Categories() {
		t.Run(c.String(), func(t *testing.T) {
			list := TransformRules(c)
			require.GreaterOrEqual(t, len(list), len(generalRules))
			for i := range generalRules {
				assert.Equal(t, SetGeneral, list[i].Set)
				assert.Equal(t, generalRules[i].Term, list[i].Term)
			}
			for _, r := range list[len(generalRules):] {
				assert.Equal(t, Set(c), r.Set)
			}
		})
	}

	assert.Len(t, TransformRules(CategoryDefault), len(generalRules))
}

func TestTransformRules_ThresholdsIncreasing(t *testing.T) {
	for _, c := range Categories() {
		for _, r := range TransformRules(c) {
			require.NotEmpty(t, r.Thresholds, r.Term)
			for i := 1; i < len(r.Thresholds); i++ {
				assert.Greater(t, r.Thresholds[i].Min, r.Thresholds[i-1].Min, r.Term)
			}
		}
	}
}

func TestTransformRule_Select(t *testing.T) {
	r := TransformRule{Term: "example", Thresholds: []Threshold{
		{Min: 3, Replacement: "advocacy"},
		{Min: 7, Replacement: "community engagement"},
	}}

	tests := []struct {
		level  int
		want   string
		wantOK bool
	}{
		{0, "", false},
		{3, "", false},
		{4, "advocacy", true},
		{7, "advocacy", true},
		{8, "community engagement", true},
		{10, "community engagement", true},
	}
	for _, tt := range tests {
		got, ok := r.Select(tt.level)
		assert.Equal(t, tt.wantOK, ok, "level %d", tt.level)
		assert.Equal(t, tt.want, got, "level %d", tt.level)
	}
}

func TestMarkers(t *testing.T) {
	assert.Equal(t, []string{"nsf", "grant"}, Markers(CategoryGrant))
	assert.Equal(t, []string{"china", "beijing"}, Markers(CategoryAuthoritarian))
	assert.Empty(t, Markers(CategoryDefault))

	m := Markers(CategoryGrant)
	m[0] = "beijing"
	assert.Equal(t, CategoryAuthoritarian, Classify("Beijing ministry"))
	assert.Equal(t, []string{"nsf", "grant"}, Markers(CategoryGrant))
	assert.Equal(t, CategoryGrant, Classify("NSF review"))
}

func TestNoiseRules(t *testing.T) {
	assert.Len(t, NoiseRules(CategoryGrant), 6)
	assert.Len(t, NoiseRules(CategoryAuthoritarian), 6)
	assert.Len(t, NoiseRules(CategoryDefault), 5)
	assert.Equal(t, NoiseRules(CategoryDefault), NoiseRules(Category("unknown")))

	for _, c := range Categories() {
		seen := map[string]bool{}
		for _, r := range NoiseRules(c) {
			assert.Equal(t, c, r.Category)
			assert.False(t, seen[r.Word], "duplicate word %q", r.Word)
			seen[r.Word] = true
		}
	}
}

func TestNoiseRules_ReturnsCopy(t *testing.T) {
	list := NoiseRules(CategoryGrant)
	list[0].Expansion = "mutated"
	assert.NotEqual(t, "mutated", NoiseRules(CategoryGrant)[0].Expansion)
}

func TestQualifyingSuffixes(t *testing.T) {
	assert.Equal(t, ", contributing to peaceful cooperation", QualifyingSuffixes(CategoryAuthoritarian)[1])
	assert.Equal(t, QualifyingSuffixes(CategoryGrant), QualifyingSuffixes(CategoryDefault))
	assert.Len(t, QualifyingSuffixes(CategoryDefault), 3)
}

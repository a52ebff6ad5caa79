package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindBilled(t *testing.T) {
	assert.False(t, KindTeaser.Billed())
	assert.True(t, KindFull.Billed())
	assert.False(t, KindLegacy.Billed())
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindTeaser.Valid())
	assert.True(t, KindFull.Valid())
	assert.True(t, KindLegacy.Valid())
	assert.False(t, Kind("tarot").Valid())
	assert.False(t, Kind("").Valid())
}

func TestWithVisionSummaryCopies(t *testing.T) {
	original := GenerationContext{Name: "Maya"}
	updated := original.WithVisionSummary("observed features")

	assert.Equal(t, "observed features", updated.VisionSummary)
	assert.Empty(t, original.VisionSummary)
}

func TestMergeOtherWins(t *testing.T) {
	base := CandidateDocument{
		"first_impression": {"summary": "from vision", "detail": "vision detail"},
		"core_essence":     {"summary": "only in base"},
	}
	overlay := CandidateDocument{
		"first_impression": {"summary": "from completion"},
		"year_ahead":       {"summary": "only in overlay"},
	}

	merged := base.Merge(overlay)

	assert.Equal(t, "from completion", merged["first_impression"]["summary"])
	assert.Equal(t, "vision detail", merged["first_impression"]["detail"])
	assert.Equal(t, "only in base", merged["core_essence"]["summary"])
	assert.Equal(t, "only in overlay", merged["year_ahead"]["summary"])

	// Merge never mutates its receiver.
	assert.Equal(t, "from vision", base["first_impression"]["summary"])
}

func TestTeaserFragmentSections(t *testing.T) {
	required := TeaserFragment().RequiredSections()
	assert.Len(t, required, 10)
	assert.Contains(t, required, "first_impression")
	assert.Contains(t, required, "year_ahead")
}

func TestFullFragmentExtendsTeaser(t *testing.T) {
	required := FullFragment().RequiredSections()
	assert.Len(t, required, 13)
	assert.Contains(t, required, "love_forecast")
	assert.Contains(t, required, "wealth_outlook")
	assert.Contains(t, required, "inner_shadow")
	assert.NotContains(t, required, "guidance")
}

func TestFragmentFor(t *testing.T) {
	assert.Len(t, FragmentFor(KindTeaser).RequiredSections(), 10)
	assert.Len(t, FragmentFor(KindFull).RequiredSections(), 13)
}

func TestSpecLookup(t *testing.T) {
	fragment := TeaserFragment()
	assert.NotNil(t, fragment.Spec("core_essence"))
	assert.Nil(t, fragment.Spec("zodiac_bonus"))
}

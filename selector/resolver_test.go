package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBareActivityStillYieldsFallbacks(t *testing.T) {
	r := New(nil)
	got := r.Resolve(nil, Target{}, "")

	require.NotEmpty(t, got)
	assert.Equal(t, genericFallbacks(), got)

	n := len(got)
	assert.Equal(t, "[data-bi-id] .pointLink", got[n-2])
	assert.Equal(t, "[data-bi-id]", got[n-1])
}

func TestResolveOrdersIdentityBeforeHref(t *testing.T) {
	r := New(nil)
	got := r.Resolve(nil, Target{
		OfferID:        "Gamification_Sapphire_Quiz",
		Name:           "SapphireQuiz",
		DestinationURL: "https://rewards.example.com/quiz/1",
	}, "")

	require.GreaterOrEqual(t, len(got), 6)
	assert.Equal(t, `[data-bi-id^="Gamification_Sapphire_Quiz"]`, got[0])
	assert.Equal(t, `[data-bi-id*="Gamification_Sapphire_Quiz"]`, got[1])
	assert.Equal(t, `[data-bi-id^="SapphireQuiz"]`, got[2])
	assert.Equal(t, `[data-bi-id*="SapphireQuiz"]`, got[3])
	assert.Equal(t, `a[href="https://rewards.example.com/quiz/1"]`, got[4])
	assert.Equal(t, `a[href*="rewards.example.com"]`, got[5])
}

func TestPunchCardHintComesFirst(t *testing.T) {
	r := New(nil)
	got := r.Resolve(nil, Target{OfferID: "X"}, "#punch-card-child-2")
	require.NotEmpty(t, got)
	assert.Equal(t, "#punch-card-child-2", got[0])
}

func TestAssembleDeduplicatesAndDropsEmpty(t *testing.T) {
	got := Assemble("", []string{"a", "", "b"}, []string{"b", "a", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestIdentityCandidatesEscapeQuotes(t *testing.T) {
	got := identityCandidates(Target{OfferID: `evil"]{}`})
	require.Len(t, got, 2)
	assert.Equal(t, `[data-bi-id^="evil\"]{}"]`, got[0])
}

func TestCandidatesFromCardIDsAppliesRecognizer(t *testing.T) {
	got := CandidatesFromCardIDs([]string{
		"Gamification_DailySet_1",
		"DailyGlobalOffer_2",
		"unrelated-widget",
		"Gamification_DailySet_1", // duplicate
		"",
	})
	assert.Equal(t, []string{
		`[data-bi-id="Gamification_DailySet_1"] .pointLink`,
		`[data-bi-id="DailyGlobalOffer_2"] .pointLink`,
	}, got)
}

func TestCandidatesFromTitleMatches(t *testing.T) {
	got := candidatesFromTitleMatches([]titleMatch{
		{cardID: "DailySet_3", href: "/redirect?x=1"},
		{cardID: "", href: ""},
		{href: "https://example.com/a"},
	})
	assert.Equal(t, []string{
		`[data-bi-id="DailySet_3"] .pointLink`,
		`a[href="/redirect?x=1"]`,
		`a[href="https://example.com/a"]`,
	}, got)
}

func TestHrefCandidatesHostnameFallback(t *testing.T) {
	got := hrefCandidates("https://www.bing.com/search?q=test")
	require.Len(t, got, 2)
	assert.Equal(t, `a[href*="www.bing.com"]`, got[1])
}

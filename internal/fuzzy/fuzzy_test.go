package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	assert.Equal(t, "acme  corp", Process("  ACME, Corp!"))
	assert.Equal(t, "", Process("?!"))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("acme", "acme"))
	assert.Equal(t, 86, Ratio("acm", "acme"))
	assert.Equal(t, 0, Ratio("abc", "xyz"))
	assert.Equal(t, 50, Ratio("ab", "ax"))
}

func TestIndelDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"acme", "acme", 0},
		{"acm", "acme", 1},
		{"abc", "xyz", 6},
		{"kitten", "sitting", 5},
		{"zavod", "заvod", 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, indelDistance([]rune(tc.a), []rune(tc.b)), "%q vs %q", tc.a, tc.b)
		assert.Equal(t, tc.want, indelDistance([]rune(tc.b), []rune(tc.a)), "%q vs %q", tc.b, tc.a)
	}
}

func TestWRatioUnrelatedNamesScoreLow(t *testing.T) {
	assert.Equal(t, 0, WRatio("acme", "zzzz"))
	assert.Less(t, WRatio("google", "amazon"), 50)
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100, PartialRatio("acme", "the acme corp"))
	assert.Equal(t, 0, PartialRatio("", "abc"))
}

func TestTokenRatiosIgnoreOrder(t *testing.T) {
	assert.Equal(t, 100, TokenSortRatio("corp acme", "acme corp", false))
	assert.Equal(t, 100, TokenSetRatio("acme", "acme acme", false))
}

func TestWRatio(t *testing.T) {
	assert.Equal(t, 100, WRatio("Acme", "ACME"))
	assert.Equal(t, 0, WRatio("", "acme"))
	assert.GreaterOrEqual(t, WRatio("corp acme", "acme corp"), 95)
	assert.Greater(t, WRatio("acm", "acme"), WRatio("acm", "globex"))
}

func TestWRatioBounds(t *testing.T) {
	pairs := [][2]string{{"a", "b"}, {"acme", "acme corporation worldwide holdings"}, {"x y z", "z y x"}}
	for _, p := range pairs {
		s := WRatio(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)
		assert.Equal(t, s, WRatio(p[1], p[0]), "symmetric for %q", p)
	}
}

func TestExtractOne(t *testing.T) {
	_, ok := ExtractOne("acme", nil)
	assert.False(t, ok)

	candidates := []string{"acme", "acme corp", "globex"}
	m, ok := ExtractOne("acm", candidates)
	require.True(t, ok)
	assert.Equal(t, "acme corp", m.Value)
	assert.Equal(t, 1, m.Index)

	again, _ := ExtractOne("acm", candidates)
	assert.Equal(t, m, again)
}

func TestExtractOneFirstSeenWinsTies(t *testing.T) {
	m, ok := ExtractOne("initech", []string{"initech", "INITECH", "initech"})
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, 100, m.Score)
}

func TestExtractOneAlwaysReturnsCandidate(t *testing.T) {
	m, ok := ExtractOne("zzz", []string{"acme"})
	require.True(t, ok)
	assert.Equal(t, "acme", m.Value)
}

// Package fuzzy scores string similarity on a 0..100 scale using a weighted
// combination of plain, partial and token based ratios, and picks the best
// candidate from a list.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Process case-folds s, replaces every non letter/digit rune with a space and
// trims the result.
func Process(s string) string {
	folded := folder.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Ratio is the normalized indel similarity of two already processed strings:
// 100 for equal strings, 0 when they share no runes.
func Ratio(a, b string) int {
	return round(rawRatio([]rune(a), []rune(b)))
}

func rawRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(total-indelDistance(a, b)) / float64(total)
}

// indelDistance counts the insertions and deletions turning a into b. A
// substitution costs two.
func indelDistance(a, b []rune) int {
	return len(a) + len(b) - 2*lcsLen(a, b)
}

// lcsLen is the length of the longest common subsequence, one DP row at a time.
func lcsLen(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for _, ra := range a {
		for j, rb := range b {
			switch {
			case ra == rb:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// PartialRatio is the best Ratio of the shorter string against every window of
// equal length in the longer one.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := rawRatio(short, long[i:i+len(short)])
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return round(best)
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TokenSortRatio compares a and b after sorting their tokens.
func TokenSortRatio(a, b string, partial bool) int {
	sa, sb := sortedTokens(a), sortedTokens(b)
	if partial {
		return PartialRatio(sa, sb)
	}
	return Ratio(sa, sb)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

func joinSorted(set map[string]struct{}) string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// shared-plus-remaining tokens and keeps the best score.
func TokenSetRatio(a, b string, partial bool) int {
	ta, tb := tokenSet(a), tokenSet(b)
	inter := make(map[string]struct{})
	onlyA := make(map[string]struct{})
	onlyB := make(map[string]struct{})
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter[t] = struct{}{}
		} else {
			onlyA[t] = struct{}{}
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB[t] = struct{}{}
		}
	}
	base := joinSorted(inter)
	combinedA := strings.TrimSpace(base + " " + joinSorted(onlyA))
	combinedB := strings.TrimSpace(base + " " + joinSorted(onlyB))

	score := Ratio
	if partial {
		score = PartialRatio
	}
	return max(score(base, combinedA), score(base, combinedB), score(combinedA, combinedB))
}

// WRatio is the weighted similarity of two raw strings in [0,100].
func WRatio(a, b string) int {
	p1, p2 := Process(a), Process(b)
	if p1 == "" || p2 == "" {
		return 0
	}
	l1, l2 := len([]rune(p1)), len([]rune(p2))
	lenRatio := float64(max(l1, l2)) / float64(min(l1, l2))

	const unbaseScale = 0.95
	base := float64(Ratio(p1, p2))

	if lenRatio < 1.5 {
		tsort := float64(TokenSortRatio(p1, p2, false)) * unbaseScale
		tset := float64(TokenSetRatio(p1, p2, false)) * unbaseScale
		return round(math.Max(base, math.Max(tsort, tset)))
	}

	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	partial := float64(PartialRatio(p1, p2)) * partialScale
	ptsort := float64(TokenSortRatio(p1, p2, true)) * unbaseScale * partialScale
	ptset := float64(TokenSetRatio(p1, p2, true)) * unbaseScale * partialScale
	return round(math.Max(math.Max(base, partial), math.Max(ptsort, ptset)))
}

// Match is the winning candidate of ExtractOne.
type Match struct {
	Value string
	Score int
	Index int
}

// ExtractOne returns the candidate with the highest WRatio against query.
// Ties keep the earliest candidate. ok is false only for an empty list.
func ExtractOne(query string, candidates []string) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	best := Match{Value: candidates[0], Score: WRatio(query, candidates[0])}
	for i := 1; i < len(candidates); i++ {
		if s := WRatio(query, candidates[i]); s > best.Score {
			best = Match{Value: candidates[i], Score: s, Index: i}
		}
	}
	return best, true
}

func round(f float64) int {
	return int(math.Round(f))
}

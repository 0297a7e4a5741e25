package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/musync/internal/models"
)

const (
	// ArtistBonus is added once per (query artist, candidate artist) pair that aligns.
	ArtistBonus = 15.0
	// ArtistMatchRatio is the partial similarity an artist pair must exceed to count.
	ArtistMatchRatio = 80.0
	// LengthPenalty is subtracted per extra rune in the candidate's raw title.
	LengthPenalty = 0.5
)

// Score returns the confidence that candidate is the same song as the query.
//
// score = TokenSortRatio(name) + 15 * aligned artist pairs - 0.5 * extra raw title runes.
// The result is unbounded above and not symmetric: a candidate with a longer raw title than the query is penalized.
func Score(queryName string, queryArtists []string, candidate models.Candidate) float64 {
	nameScore := TokenSortRatio(matchForms(queryName, candidate.Name))

	pairs := 0
	for _, qa := range queryArtists {
		for _, ca := range candidate.Artists {
			if PartialRatio(matchForms(qa, ca)) > ArtistMatchRatio {
				pairs++
			}
		}
	}

	extra := utf8.RuneCountInString(candidate.Name) - utf8.RuneCountInString(queryName)
	penalty := LengthPenalty * float64(max(0, extra))

	return nameScore + ArtistBonus*float64(pairs) - penalty
}

// ScoreTrack adapts [Score] to a (track, candidate) pair.
func ScoreTrack(t models.Track, c models.Candidate) float64 {
	return Score(t.Name, t.Artists, c)
}

// Ratio is a 0-100 similarity derived from the Levenshtein distance, normalized by the longer string.
//
// Two empty strings carry no evidence of a match and score 0.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// TokenSortRatio compares the words of a and b after sorting them, so reordering is not penalized.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

// PartialRatio is the best [Ratio] between the shorter string and every equally long window of the longer one.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := Ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// matchForms normalizes a and b. When both normalize to nothing, as titles written entirely in
// non-Latin scripts do, the lower-cased raw strings are compared instead.
func matchForms(a, b string) (string, string) {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return fold(a), fold(b)
	}
	return na, nb
}

func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

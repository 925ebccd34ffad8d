package taxonomy

import "strings"

// Composite score weights. The values are empirical; callers should rely on the
// ranking they produce rather than on absolute numbers.
const (
	JaccardWeight = 2.0
	MaxScore      = JaccardWeight
)

// Levenshtein returns the edit distance between a and b, counting single-rune
// inserts, deletes and substitutions.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	rows, cols := len(ra)+1, len(rb)+1

	d := make([][]int, rows)
	for i := range d {
		d[i] = make([]int, cols)
		d[i][0] = i
	}
	for j := 0; j < cols; j++ {
		d[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(
				d[i-1][j]+1,      // delete
				d[i][j-1]+1,      // insert
				d[i-1][j-1]+cost, // substitute
			)
		}
	}
	return d[rows-1][cols-1]
}

// Jaccard returns |A ∩ B| / |A ∪ B| over the whitespace-separated token sets of
// a and b, and 0 when both are empty.
func Jaccard(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// Score ranks how close a normalized legacy label is to a normalized canonical
// label: shared words count double, edit distance is penalised relative to the
// legacy label's own length.
func Score(legacy, canonical string) float64 {
	n := len([]rune(legacy))
	if n < 1 {
		n = 1
	}
	return JaccardWeight*Jaccard(legacy, canonical) - float64(Levenshtein(legacy, canonical))/float64(n)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

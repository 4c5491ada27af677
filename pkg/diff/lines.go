package diff

import "strings"

// LineOp is the prefix of a diff line.
type LineOp string

const (
	Keep   LineOp = " "
	Insert LineOp = "+"
	Delete LineOp = "-"
)

// Line is one line of a line-level diff.
type Line struct {
	Op   LineOp
	Text string
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// Lines diffs two texts line by line using a longest common subsequence.
// Notes are short, so the quadratic table is fine.
func Lines(before, after string) []Line {
	a, b := splitLines(before), splitLines(after)

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var out []Line
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, Line{Keep, a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, Line{Delete, a[i]})
			i++
		default:
			out = append(out, Line{Insert, b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, Line{Delete, a[i]})
	}
	for ; j < len(b); j++ {
		out = append(out, Line{Insert, b[j]})
	}
	return out
}

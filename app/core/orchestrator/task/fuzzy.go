package task

import (
	"sort"
	"strings"
)

// Match is one fuzzy-search hit; lower Distance ranks earlier.
type Match struct {
	Key      string
	Task     Task
	Distance int
}

// MatchOptions tune FindByText. The zero value gives case-insensitive fuzzy
// matching.
type MatchOptions struct {
	Exact         bool
	CaseSensitive bool
}

// FindByText returns every task whose text matches search, best match first.
// A task matches on exact equality, containment in either direction, or
// Levenshtein distance ≤ 2. Results are ordered by edit distance ascending;
// ties keep chronological bucket order.
func (s *Store) FindByText(search string) []Match {
	return s.FindByTextOpts(search, MatchOptions{})
}

func (s *Store) FindByTextOpts(search string, opts MatchOptions) []Match {
	if !opts.CaseSensitive {
		search = strings.ToLower(search)
	}

	var results []Match
	for _, key := range s.SortedKeys() {
		for _, t := range s.buckets[key] {
			text := t.Text
			if !opts.CaseSensitive {
				text = strings.ToLower(text)
			}

			var matches bool
			if opts.Exact {
				matches = text == search
			} else {
				matches = strings.Contains(text, search) ||
					strings.Contains(search, text) ||
					levenshtein(text, search) <= 2
			}
			if matches {
				results = append(results, Match{Key: key, Task: t, Distance: levenshtein(text, search)})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results
}

// levenshtein computes the edit distance between two strings with unit
// insert/delete/substitute costs, over runes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = min3(prev[j-1], curr[j-1], prev[j]) + 1
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

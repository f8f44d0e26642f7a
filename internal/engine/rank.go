package engine

import (
	"sort"

	"github.com/kmehra/gradelens/internal/model"
)

// Rank sorts results by total score descending (stable, so input order is
// preserved among exact ties) and assigns competition-style ranks in
// place: tied students share a rank, and the next distinct score takes a
// rank equal to its 1-indexed position, skipping past the tie.
func Rank(results []model.StudentResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalScore > results[j].TotalScore
	})

	rank := 1
	for i := range results {
		if i > 0 && results[i].TotalScore < results[i-1].TotalScore {
			rank = i + 1
		}
		results[i].Rank = rank
	}
}

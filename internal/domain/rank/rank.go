// Package rank orders leaderboard snapshots.
package rank

import (
	"math"
	"sort"

	"github.com/varrock/clogboard/internal/domain/score"
)

// Entry is one row of a ranked snapshot.
type Entry struct {
	// Key is the participant key (the player name).
	Key string
	// Total is the resolved collection log total.
	Total score.Total
	// SourceRank is the hiscore source's own ordinal; <= 0 means unknown.
	SourceRank int
}

// Order sorts entries in place: higher totals first, below-floor totals
// last; ties broken by the source's rank ascending, with unknown ranks
// after all known ones, then by key. The key tiebreak makes the published
// ordering a pure function of the entries, whatever order they arrive in.
func Order(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := entries[i].Total.Raw(), entries[j].Total.Raw()
		if ri != rj {
			return ri > rj
		}
		ti, tj := tiebreak(entries[i].SourceRank), tiebreak(entries[j].SourceRank)
		if ti != tj {
			return ti < tj
		}
		return entries[i].Key < entries[j].Key
	})
}

// Top returns at most n leading entries of an already ordered snapshot.
func Top(entries []Entry, n int) []Entry {
	if n < 0 {
		n = 0
	}
	if len(entries) <= n {
		return entries
	}
	return entries[:n]
}

func tiebreak(sourceRank int) int {
	if sourceRank <= 0 {
		return math.MaxInt
	}
	return sourceRank
}

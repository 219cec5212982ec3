// Package store persists linked accounts, leaderboard rows, and display
// state in sqlite.
package store

import (
	"github.com/varrock/clogboard/internal/domain/score"
)

// Account is one linked player account within a scope (guild).
// Identity is (Scope, OwnerID, Player); Category and Decoration are the
// mutable display attributes.
type Account struct {
	Scope      string
	OwnerID    string
	Player     string
	Category   string
	Decoration string
}

// Record is one leaderboard row for a scope.
type Record struct {
	Player     string
	Total      score.Total
	SourceRank int
}

// DisplayState tracks where the leaderboard message lives for a scope.
// MessageID is empty until the first publish.
type DisplayState struct {
	ChannelID string
	MessageID string
}

// State keys persisted per scope.
const (
	stateKeyChannel = "display_channel_id"
	stateKeyMessage = "display_artifact_id"
)

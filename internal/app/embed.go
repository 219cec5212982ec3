package app

import "time"

// Embed is the rendered leaderboard artifact, kept transport-agnostic so
// the renderer can be tested without a Discord session.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	FooterText  string
	Timestamp   time.Time
}

// EmbedField is one titled section of an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/varrock/clogboard/internal/adapters/store"
	"github.com/varrock/clogboard/internal/domain/rank"
)

const embedColor = 0xF5C243

var medals = []string{"🥇", "🥈", "🥉"}

// render builds the leaderboard embed from an ordered, truncated snapshot.
func (s *Service) render(entries []rank.Entry, accounts map[string]store.Account, now time.Time) *Embed {
	var b strings.Builder

	for i, e := range entries {
		b.WriteString(position(i))
		b.WriteByte(' ')

		account, linked := accounts[e.Key]
		if linked {
			if emoji, ok := s.emojis[account.Category]; ok && emoji != "" {
				b.WriteString(emoji)
				b.WriteByte(' ')
			}
		}

		b.WriteString("**")
		b.WriteString(e.Key)
		b.WriteString("**")
		if linked && account.Decoration != "" {
			b.WriteByte(' ')
			b.WriteString(account.Decoration)
		}

		b.WriteString(" — ")
		b.WriteString(formatTotal(e))
		if i == 0 {
			b.WriteString(" / ")
			b.WriteString(groupDigits(s.totalAchievable))
		}
		b.WriteByte('\n')

		// Visual break between the podium and the rest of the field.
		if i == 2 && len(entries) > 3 {
			b.WriteByte('\n')
		}
	}

	if len(entries) == 0 {
		b.WriteString("No tracked players yet. Use `/link` to join the board.")
	}

	return &Embed{
		Title:       fmt.Sprintf("🏆 Collection Log Leaderboard (Top %d) 🏆", s.topN),
		Description: b.String(),
		Color:       embedColor,
		Fields: []EmbedField{
			{
				Name: "📋 Bot Commands",
				Value: strings.Join([]string{
					"`/link` — add a player to the board",
					"`/unlink` — remove one of your players",
					"`/update` — change account type or decoration",
					"`/list` — show your linked players",
					"`/whois` — look up who linked a player",
					"`/resync` — refresh the board now",
				}, "\n"),
			},
			{
				Name: "ℹ️ Info",
				Value: "`<500` means the hiscores hide totals below 500 entries. " +
					"The board refreshes automatically every hour.",
			},
		},
		FooterText: "Last updated",
		Timestamp:  now,
	}
}

func position(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("`%2d.`", i+1)
}

func formatTotal(e rank.Entry) string {
	if v, ok := e.Total.Value(); ok {
		return groupDigits(v)
	}
	return e.Total.String()
}

// groupDigits renders n with comma thousand separators.
func groupDigits(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 || len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

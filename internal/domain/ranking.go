package domain

import "time"

// RankingPointer locates the published leaderboard record.
// Both halves are set together or not at all.
type RankingPointer struct {
	ChannelID *string
	MessageID *string
	UpdatedAt time.Time
}

// Active reports whether a leaderboard publication is in effect.
func (p RankingPointer) Active() bool {
	return p.ChannelID != nil && *p.ChannelID != "" && p.MessageID != nil && *p.MessageID != ""
}

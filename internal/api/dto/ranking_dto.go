package dto

import "time"

// StartRankingRequest payload for POST /staff/ranking/start.
type StartRankingRequest struct {
	ChannelID string `json:"channel_id"`
}

// StandingResponse is one leaderboard row.
type StandingResponse struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Total  int64  `json:"total"`
}

// RankingResponse describes the leaderboard state.
type RankingResponse struct {
	Active    bool               `json:"active"`
	ChannelID *string            `json:"channel_id,omitempty"`
	MessageID *string            `json:"message_id,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
	Standings []StandingResponse `json:"standings"`
}

// RefreshResponse reports a manual refresh.
type RefreshResponse struct {
	Outcome string `json:"outcome"`
}

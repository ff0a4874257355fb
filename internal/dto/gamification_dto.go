package dto

import "time"

// GamificationProfileResponse is a user's points, level and badges.
type GamificationProfileResponse struct {
	UserID    uint      `json:"user_id"`
	Points    int       `json:"points"`
	Level     int       `json:"level"`
	NextLevel int       `json:"next_level_points"`
	Badges    []string  `json:"badges"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank   int  `json:"rank"`
	UserID uint `json:"user_id"`
	Points int  `json:"points"`
	Level  int  `json:"level"`
}

package analytics

import "hebrewvocab/internal/gamedata"

// PlayerRoundStats is a player's standing in the round being played.
type PlayerRoundStats struct {
	Revealed   int  `json:"revealed"`
	TriesLeft  int  `json:"triesLeft"`
	RoundScore int  `json:"roundScore"`
	Finished   bool `json:"finished"`
	FirstTry   bool `json:"firstTry"`
}

type LeaderboardEntry struct {
	PlayerID   string            `json:"playerId"`
	PlayerName string            `json:"name"`
	Score      int               `json:"score"`
	Rank       int               `json:"rank"`
	IsHost     bool              `json:"isHost"`
	Round      *PlayerRoundStats `json:"round,omitempty"`
	Badges     []Badge           `json:"badges,omitempty"`
}

// GameRecap is the scoreboard of one room. Winner is set once the game is
// over.
type GameRecap struct {
	RoomCode   string             `json:"code"`
	Phase      gamedata.Phase     `json:"phase"`
	Round      int                `json:"round"`
	TotalWords int                `json:"totalWords"`
	Entries    []LeaderboardEntry `json:"players"`
	Winner     *LeaderboardEntry  `json:"winner,omitempty"`
}

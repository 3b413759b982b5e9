package analytics

import (
	"hebrewvocab/internal/rules"
	"hebrewvocab/internal/words"
)

type BadgeID string

const (
	BadgeChampion  BadgeID = "champion"
	BadgeScholar   BadgeID = "scholar"
	BadgeFlawless  BadgeID = "flawless"
	BadgeSharpshot BadgeID = "sharpshot"
)

// scholarScore is the score of solving half the list on the first try.
var scholarScore = rules.InitialRoundScore * words.Count() / 2

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeChampion:  {ID: BadgeChampion, Name: "Champion", Description: "Top score when the game ended", Icon: "🏆"},
	BadgeScholar:   {ID: BadgeScholar, Name: "Scholar", Description: "Scored at least half of the possible points", Icon: "📚"},
	BadgeFlawless:  {ID: BadgeFlawless, Name: "Flawless", Description: "Every word solved on the first try", Icon: "✨"},
	BadgeSharpshot: {ID: BadgeSharpshot, Name: "Sharpshot", Description: "Solved the current word on the first try", Icon: "🎯"},
}

// EvaluateBadges checks which badges an entry has earned so far. Champion and
// Flawless are only awarded once the game is over.
func EvaluateBadges(e LeaderboardEntry, gameOver bool) []Badge {
	var earned []Badge

	// Champion: ranked first at the end, ties included
	if gameOver && e.Rank == 1 && e.Score > 0 {
		earned = append(earned, AllBadges[BadgeChampion])
	}

	if e.Score >= scholarScore {
		earned = append(earned, AllBadges[BadgeScholar])
	}

	if gameOver && e.Score == rules.InitialRoundScore*words.Count() {
		earned = append(earned, AllBadges[BadgeFlawless])
	}

	if e.Round != nil && e.Round.FirstTry {
		earned = append(earned, AllBadges[BadgeSharpshot])
	}

	return earned
}

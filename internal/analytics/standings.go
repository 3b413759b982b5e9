package analytics

import (
	"sort"

	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/rules"
	"hebrewvocab/internal/words"
)

// Recap ranks the room's players by score, highest first. Equal scores share
// a rank and keep join order, so the host wins a tie.
func Recap(code string, room gamedata.Room) GameRecap {
	entries := make([]LeaderboardEntry, 0, len(room.Players))
	for i, p := range room.Players {
		e := LeaderboardEntry{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Score:      p.Score,
			IsHost:     i == 0,
		}
		if ps, ok := room.PlayerStates[p.ID]; ok && room.GameStarted {
			e.Round = roundStats(room, ps)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}

	recap := GameRecap{
		RoomCode:   code,
		Phase:      room.Phase(),
		Round:      room.Round,
		TotalWords: words.Count(),
		Entries:    entries,
	}
	if room.GameOver && len(entries) > 0 {
		winner := entries[0]
		recap.Winner = &winner
	}
	for i := range recap.Entries {
		recap.Entries[i].Badges = EvaluateBadges(recap.Entries[i], room.GameOver)
	}
	if recap.Winner != nil {
		recap.Winner.Badges = recap.Entries[0].Badges
	}
	return recap
}

func roundStats(room gamedata.Room, ps gamedata.PlayerRoundState) *PlayerRoundStats {
	stats := &PlayerRoundStats{
		Revealed:   ps.CorrectLetters.Revealed(),
		TriesLeft:  ps.TriesLeft,
		RoundScore: ps.RoundScore,
		Finished:   ps.Finished,
	}
	if w, ok := room.CurrentWord(); ok {
		stats.FirstTry = ps.Finished && ps.RoundScore == rules.InitialRoundScore && stats.Revealed == w.Len()
	}
	return stats
}

package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportResults appends a readable summary of a finished game to filename.
func ExportResults(filename string, s *Session, out Outcome, chat []ChatMessage) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Alias Game Results - %s (%s)\n", s.Name, s.ID))
	sb.WriteString(fmt.Sprintf("Difficulty: %s, %d rounds of %ds, %d turns played\n", s.Difficulty, s.TotalRounds, s.RoundSeconds, s.CurrentTurn))
	sb.WriteString(fmt.Sprintf("Finished: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, id := range []TeamID{Team1, Team2} {
		score := out.Scores.Team1
		if id == Team2 {
			score = out.Scores.Team2
		}
		marker := ""
		if out.Winner == id {
			marker = " (winner)"
		}
		sb.WriteString(fmt.Sprintf("%s: %d points%s\n", id, score, marker))

		players := append([]string{}, s.Team(id).Players...)
		// highest scorer first, ties by name
		sort.Slice(players, func(i, j int) bool {
			pi, pj := out.Players[players[i]], out.Players[players[j]]
			if pi != pj {
				return pi > pj
			}
			return players[i] < players[j]
		})
		for _, p := range players {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", p, out.Players[p]))
		}
		sb.WriteString("\n")
	}
	if out.Winner == "" {
		sb.WriteString("Result: tie\n\n")
	}

	if len(chat) > 0 {
		sb.WriteString("Chat:\n")
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		for _, m := range chat {
			sb.WriteString(fmt.Sprintf("[%s] %s (%s): %s\n", m.Timestamp.Format("15:04:05"), m.Sender, m.Role, m.Content))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

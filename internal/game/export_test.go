package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExportResults(t *testing.T) {
	file := filepath.Join(t.TempDir(), "out", "results.txt")
	s := &Session{
		ID: "g1", Name: "Friday", Difficulty: DifficultyHard, RoundSeconds: 30, TotalRounds: 2, CurrentTurn: 2,
		Team1: Team{Players: []string{"ana", "ben"}},
		Team2: Team{Players: []string{"cat"}},
	}
	out := Outcome{Scores: TeamScores{Team1: 3, Team2: 1}, Winner: Team1, Players: map[string]int{"ana": 1, "ben": 2, "cat": 1}}
	chat := []ChatMessage{{Sender: "ana", Content: "striped horse", Role: RoleDescriber, Timestamp: time.Now()}}

	if err := ExportResults(file, s, out, chat); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if err := ExportResults(file, s, out, nil); err != nil {
		t.Fatalf("second export failed: %v", err)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	text := string(b)
	if strings.Count(text, "Alias Game Results - Friday (g1)") != 2 {
		t.Fatal("expected two appended reports")
	}
	if !strings.Contains(text, "team1: 3 points (winner)") {
		t.Fatalf("missing winner line:\n%s", text)
	}
	if strings.Index(text, "- ben: 2") > strings.Index(text, "- ana: 1") {
		t.Fatal("players should be sorted by score")
	}
	if !strings.Contains(text, "ana (describer): striped horse") {
		t.Fatal("missing chat line")
	}
}

package game

import (
	"slices"
	"time"
)

type Status string

const (
	StatusCreating Status = "creating"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// rank orders statuses; a session never moves to a lower rank.
func (s Status) rank() int {
	switch s {
	case StatusCreating:
		return 0
	case StatusPlaying:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type TeamID string

const (
	Team1 TeamID = "team1"
	Team2 TeamID = "team2"
)

func (t TeamID) Valid() bool { return t == Team1 || t == Team2 }

// Other returns the opposing team.
func (t TeamID) Other() TeamID {
	if t == Team1 {
		return Team2
	}
	return Team1
}

type Role string

const (
	RoleDescriber Role = "describer"
	RoleGuesser   Role = "guesser"
)

type Team struct {
	Players []string `json:"players"`
	ChatID  string   `json:"chatId,omitempty"`
	Score   int      `json:"score"`
}

func (t *Team) Has(player string) bool { return slices.Contains(t.Players, player) }

// Session is the persisted shape of a game.
type Session struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Difficulty   Difficulty `json:"difficulty"`
	RoundSeconds int        `json:"roundSeconds"`
	TotalRounds  int        `json:"totalRounds"`
	Status       Status     `json:"status"`
	Team1        Team       `json:"team1"`
	Team2        Team       `json:"team2"`
	CurrentTurn  int        `json:"currentTurn"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Team returns a pointer to the team with the given id, or nil.
func (s *Session) Team(id TeamID) *Team {
	switch id {
	case Team1:
		return &s.Team1
	case Team2:
		return &s.Team2
	}
	return nil
}

// TeamOf returns the team the player is on.
func (s *Session) TeamOf(player string) (TeamID, bool) {
	switch {
	case s.Team1.Has(player):
		return Team1, true
	case s.Team2.Has(player):
		return Team2, true
	}
	return "", false
}

// Players returns every participant, team1 first.
func (s *Session) Players() []string {
	out := make([]string, 0, len(s.Team1.Players)+len(s.Team2.Players))
	out = append(out, s.Team1.Players...)
	return append(out, s.Team2.Players...)
}

// Advance moves the status forward. Moving backwards is refused.
func (s *Session) Advance(to Status) error {
	if to.rank() < s.Status.rank() {
		return ErrInvalidStatus
	}
	s.Status = to
	return nil
}

func (s *Session) Clone() *Session {
	c := *s
	c.Team1.Players = slices.Clone(s.Team1.Players)
	c.Team2.Players = slices.Clone(s.Team2.Players)
	return &c
}

// Turn is the state of the turn in progress.
type Turn struct {
	Number    int      `json:"turn"`
	Round     int      `json:"round"`
	Team      TeamID   `json:"team"`
	Describer string   `json:"describer"`
	Guessers  []string `json:"guessers"`
	Word      string   `json:"-"`
}

type UserStats struct {
	GamesPlayed  int `json:"gamesPlayed"`
	GamesWon     int `json:"gamesWon"`
	WordsGuessed int `json:"wordsGuessed"`
}

type User struct {
	Username  string    `json:"username"`
	Stats     UserStats `json:"stats"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerResult is what one finished game adds to a user's stats.
type PlayerResult struct {
	Username     string
	WordsGuessed int
	Won          bool
}

type MessageKind string

const (
	KindDescription MessageKind = "description"
	KindMessage     MessageKind = "message"
)

type ChatMessage struct {
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	Role      Role        `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
}

type TeamScores struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// Winner returns the team with the strictly higher score. A tie has none.
func (s TeamScores) Winner() (TeamID, bool) {
	switch {
	case s.Team1 > s.Team2:
		return Team1, true
	case s.Team2 > s.Team1:
		return Team2, true
	}
	return "", false
}

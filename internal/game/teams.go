package game

import (
	"math/rand"
	"slices"
	"sync"
)

// TeamAssigner places players on teams. It only mutates the session it is
// given; persisting and broadcasting is up to the caller.
type TeamAssigner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewTeamAssigner(src rand.Source) *TeamAssigner {
	return &TeamAssigner{rng: rand.New(src)}
}

// Assign returns the player's team, placing new players on a random team.
// added is false when the player was already a member.
func (a *TeamAssigner) Assign(s *Session, player string) (team TeamID, added bool) {
	if id, ok := s.TeamOf(player); ok {
		return id, false
	}
	a.mu.Lock()
	team = Team1
	if a.rng.Intn(2) == 1 {
		team = Team2
	}
	a.mu.Unlock()
	t := s.Team(team)
	t.Players = append(t.Players, player)
	return team, true
}

// Swap moves the player to the other team.
func (a *TeamAssigner) Swap(s *Session, player string) (TeamID, error) {
	from, ok := s.TeamOf(player)
	if !ok {
		return "", ErrPlayerNotInTeam
	}
	removePlayer(s.Team(from), player)
	to := from.Other()
	t := s.Team(to)
	t.Players = append(t.Players, player)
	return to, nil
}

// Add puts the player on a specific team, moving them if they were on the
// other one.
func (a *TeamAssigner) Add(s *Session, team TeamID, player string) error {
	if !team.Valid() {
		return ErrInvalidTeam
	}
	if cur, ok := s.TeamOf(player); ok {
		if cur == team {
			return nil
		}
		removePlayer(s.Team(cur), player)
	}
	t := s.Team(team)
	t.Players = append(t.Players, player)
	return nil
}

// Remove takes the player off the given team.
func (a *TeamAssigner) Remove(s *Session, team TeamID, player string) error {
	if !team.Valid() {
		return ErrInvalidTeam
	}
	t := s.Team(team)
	if !t.Has(player) {
		return ErrPlayerNotInTeam
	}
	removePlayer(t, player)
	return nil
}

func removePlayer(t *Team, player string) {
	t.Players = slices.DeleteFunc(t.Players, func(p string) bool { return p == player })
}

// Roster is the snapshot broadcast whenever membership changes.
type Roster struct {
	GameID    string   `json:"gameId"`
	User      string   `json:"user,omitempty"`
	UsersTeam TeamID   `json:"usersTeam,omitempty"`
	Team1     []string `json:"team1"`
	Team2     []string `json:"team2"`
}

func rosterOf(s *Session, user string, team TeamID) Roster {
	return Roster{
		GameID:    s.ID,
		User:      user,
		UsersTeam: team,
		Team1:     append([]string{}, s.Team1.Players...),
		Team2:     append([]string{}, s.Team2.Players...),
	}
}

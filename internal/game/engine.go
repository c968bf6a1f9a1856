package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiliankoe/alias/internal/anticheat"
	"github.com/rs/zerolog"
)

const (
	DefaultRoundSeconds = 60
	DefaultTotalRounds  = 3
)

var (
	ErrEmptyMessage  = errors.New("empty message")
	ErrInvalidPlayer = errors.New("invalid player name")
)

// Options wires an Engine. Repo, Gateway and Words are required.
type Options struct {
	Repo    Repository
	Gateway Gateway
	Words   WordSource
	// Ledger defaults to a MemoryLedger.
	Ledger LedgerStore
	// Ticker defaults to RealTicker.
	Ticker TickerFunc
	// Seed seeds team and describer draws; zero uses the clock.
	Seed int64
	// ExportFile, when set, receives a text summary of every finished game.
	ExportFile          string
	DefaultRoundSeconds int
	DefaultTotalRounds  int
	Logger              zerolog.Logger
	Now                 func() time.Time
}

// Engine runs games. All work on one game is serialized; different games
// run independently.
type Engine struct {
	repo      Repository
	gateway   Gateway
	turns     *TurnMachine
	teams     *TeamAssigner
	ledger    *ScoreLedger
	scheduler *Scheduler
	words     *WordBook
	chats     *ChatLog
	rooms     *rooms

	exportFile    string
	defaultSecs   int
	defaultRounds int
	log           zerolog.Logger
	now           func() time.Time
}

func NewEngine(opts Options) *Engine {
	if opts.Ledger == nil {
		opts.Ledger = NewMemoryLedger()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.DefaultRoundSeconds <= 0 {
		opts.DefaultRoundSeconds = DefaultRoundSeconds
	}
	if opts.DefaultTotalRounds <= 0 {
		opts.DefaultTotalRounds = DefaultTotalRounds
	}
	return &Engine{
		repo:          opts.Repo,
		gateway:       opts.Gateway,
		turns:         NewTurnMachine(rand.NewSource(opts.Seed)),
		teams:         NewTeamAssigner(rand.NewSource(opts.Seed + 1)),
		ledger:        NewScoreLedger(opts.Ledger, opts.Repo, opts.Gateway, opts.Logger),
		scheduler:     NewScheduler(opts.Ticker),
		words:         NewWordBook(opts.Words),
		chats:         NewChatLog(opts.Repo),
		rooms:         newRooms(),
		exportFile:    opts.ExportFile,
		defaultSecs:   opts.DefaultRoundSeconds,
		defaultRounds: opts.DefaultTotalRounds,
		log:           opts.Logger,
		now:           opts.Now,
	}
}

// GameSettings are the parameters of a new game. Zero values fall back to
// the engine defaults.
type GameSettings struct {
	Name         string     `json:"name"`
	Difficulty   Difficulty `json:"difficulty"`
	RoundSeconds int        `json:"roundSeconds"`
	TotalRounds  int        `json:"totalRounds"`
}

func (e *Engine) CreateGame(ctx context.Context, in GameSettings) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSettings)
	}
	if in.Difficulty == "" {
		in.Difficulty = DifficultyMedium
	}
	if !in.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidSettings, in.Difficulty)
	}
	if in.RoundSeconds == 0 {
		in.RoundSeconds = e.defaultSecs
	}
	if in.TotalRounds == 0 {
		in.TotalRounds = e.defaultRounds
	}
	if in.RoundSeconds < 0 || in.TotalRounds < 0 {
		return nil, fmt.Errorf("%w: durations must be positive", ErrInvalidSettings)
	}

	s := &Session{
		ID:           uuid.NewString(),
		Name:         name,
		Difficulty:   in.Difficulty,
		RoundSeconds: in.RoundSeconds,
		TotalRounds:  in.TotalRounds,
		Status:       StatusCreating,
		Team1:        Team{Players: []string{}, ChatID: uuid.NewString()},
		Team2:        Team{Players: []string{}, ChatID: uuid.NewString()},
		CreatedAt:    e.now(),
	}
	if err := e.repo.CreateGame(ctx, s); err != nil {
		return nil, err
	}
	e.log.Info().Str("game", s.ID).Str("name", s.Name).Str("difficulty", string(s.Difficulty)).Msg("game created")
	return s.Clone(), nil
}

// load returns the live session of a running game, or the stored one.
func (e *Engine) load(ctx context.Context, gameID string) (*Session, bool, error) {
	if s, ok := e.rooms.get(gameID); ok {
		return s, true, nil
	}
	s, err := e.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

func (e *Engine) Game(ctx context.Context, gameID string) (*Session, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()
	s, _, err := e.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (e *Engine) NotStartedGames(ctx context.Context) ([]*Session, error) {
	return e.repo.GamesByStatus(ctx, StatusCreating)
}

func (e *Engine) User(ctx context.Context, username string) (User, error) {
	return e.repo.GetUser(ctx, username)
}

// Join places a player on a team (random for newcomers), binds their socket
// and broadcasts the roster.
func (e *Engine) Join(ctx context.Context, gameID, player, socketID string) (Roster, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return Roster{}, ErrInvalidPlayer
	}
	r, err := e.updateTeams(ctx, gameID, player, func(s *Session) (TeamID, error) {
		team, _ := e.teams.Assign(s, player)
		return team, nil
	})
	if err != nil {
		return Roster{}, err
	}
	if socketID != "" {
		e.rooms.bindSocket(gameID, player, socketID)
		if t, ok := e.turns.Current(gameID); ok && t.Describer == player && t.Word != "" {
			e.sendSecret(gameID, player, t.Word)
		}
	}
	return r, nil
}

func (e *Engine) SwapTeam(ctx context.Context, gameID, player string) (Roster, error) {
	return e.updateTeams(ctx, gameID, player, func(s *Session) (TeamID, error) {
		return e.teams.Swap(s, player)
	})
}

func (e *Engine) AddUser(ctx context.Context, gameID string, team TeamID, player string) (Roster, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return Roster{}, ErrInvalidPlayer
	}
	return e.updateTeams(ctx, gameID, player, func(s *Session) (TeamID, error) {
		return team, e.teams.Add(s, team, player)
	})
}

func (e *Engine) RemoveUser(ctx context.Context, gameID string, team TeamID, player string) (Roster, error) {
	return e.updateTeams(ctx, gameID, player, func(s *Session) (TeamID, error) {
		return "", e.teams.Remove(s, team, player)
	})
}

// updateTeams applies fn to a copy of the session, stores it and broadcasts
// the roster. A failing fn or save leaves the session untouched.
func (e *Engine) updateTeams(ctx context.Context, gameID, player string, fn func(*Session) (TeamID, error)) (Roster, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	s, live, err := e.load(ctx, gameID)
	if err != nil {
		return Roster{}, err
	}
	if s.Status == StatusFinished {
		return Roster{}, ErrInvalidStatus
	}
	next := s.Clone()
	team, err := fn(next)
	if err != nil {
		return Roster{}, err
	}
	if err := e.repo.SaveGame(ctx, next); err != nil {
		return Roster{}, err
	}
	if live {
		e.rooms.put(next)
	}
	r := rosterOf(next, player, team)
	e.gateway.ToGame(gameID).Emit(EventUserJoined, r)
	return r, nil
}

// Disconnect forgets a closed connection.
func (e *Engine) Disconnect(socketID string) {
	e.rooms.unbindSocket(socketID)
}

// StartGame moves a game from creating to playing, opens the first turn and
// starts the countdown. Non-positive durations keep the stored ones.
func (e *Engine) StartGame(ctx context.Context, gameID string, roundSeconds, totalRounds int) (*Session, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	if e.scheduler.Active(gameID) {
		return nil, ErrTimerActive
	}
	s, _, err := e.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusCreating {
		return nil, ErrInvalidStatus
	}
	s = s.Clone()
	if roundSeconds > 0 {
		s.RoundSeconds = roundSeconds
	}
	if totalRounds > 0 {
		s.TotalRounds = totalRounds
	}
	if s.RoundSeconds <= 0 || s.TotalRounds <= 0 {
		return nil, ErrInvalidSettings
	}
	if len(s.Team1.Players) == 0 || len(s.Team2.Players) == 0 {
		return nil, ErrNotEnoughPlayers
	}

	word, err := e.words.Generate(ctx, gameID, s.Difficulty)
	if err != nil {
		return nil, err
	}
	if err := s.Advance(StatusPlaying); err != nil {
		return nil, err
	}
	s.CurrentTurn = 0
	e.turns.Reset(gameID)
	turn, err := e.turns.StartTurn(s, 1)
	if err != nil {
		e.turns.Discard(gameID)
		return nil, err
	}
	e.turns.SetWord(gameID, word)
	if err := e.repo.SaveGame(ctx, s); err != nil {
		e.turns.Discard(gameID)
		e.words.Forget(gameID)
		return nil, err
	}
	e.ledger.Open(gameID)
	e.chats.Open(gameID)
	e.rooms.put(s)
	if _, err := e.scheduler.Start(gameID, s.RoundSeconds, s.TotalRounds, roundDriver{e}); err != nil {
		return nil, err
	}

	e.log.Info().Str("game", gameID).Int("roundSeconds", s.RoundSeconds).Int("rounds", s.TotalRounds).Msg("game started")
	e.gateway.ToGame(gameID).Emit(EventStartGame, s.Clone())
	e.announceTurn(s, turn, word)
	return s.Clone(), nil
}

func (e *Engine) announceTurn(s *Session, t Turn, word string) {
	room := e.gateway.ToGame(s.ID)
	room.Emit(EventNewTurn, t)
	if word != "" {
		room.Emit(EventNewWord, map[string]any{"gameId": s.ID, "turn": t.Number})
		e.sendSecret(s.ID, t.Describer, word)
	}
}

func (e *Engine) sendSecret(gameID, player, word string) {
	if sid, ok := e.rooms.socketOf(gameID, player); ok {
		e.gateway.ToSocket(sid).Emit(EventSecretWord, map[string]any{"gameId": gameID, "word": word})
	}
}

// advanceLocked opens the next turn. When no describer is left the game is
// finished and ErrTurnsExhausted returned. Caller holds the game lock.
func (e *Engine) advanceLocked(ctx context.Context, s *Session, round int) (Turn, error) {
	turn, err := e.turns.StartTurn(s, round)
	if errors.Is(err, ErrTurnsExhausted) {
		e.log.Info().Str("game", s.ID).Str("team", string(turn.Team)).Msg("describers exhausted")
		if _, ferr := e.finishLocked(ctx, s, "describers exhausted"); ferr != nil {
			e.log.Error().Err(ferr).Str("game", s.ID).Msg("finish game")
		}
		return Turn{}, err
	}
	if err != nil {
		return Turn{}, err
	}

	word, werr := e.words.Generate(ctx, s.ID, s.Difficulty)
	if werr != nil {
		e.log.Error().Err(werr).Str("game", s.ID).Msg("generate word")
	} else {
		e.turns.SetWord(s.ID, word)
		turn.Word = word
	}
	if err := e.repo.SaveGame(ctx, s); err != nil {
		e.log.Error().Err(err).Str("game", s.ID).Msg("save turn")
	}
	e.announceTurn(s, turn, word)
	return turn, werr
}

// livePlaying returns the live session if the game is being played.
func (e *Engine) livePlaying(ctx context.Context, gameID string) (*Session, error) {
	s, live, err := e.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !live || s.Status != StatusPlaying {
		return nil, ErrInvalidStatus
	}
	return s, nil
}

// SwitchTurn ends the current turn early and opens the next one in the same
// round.
func (e *Engine) SwitchTurn(ctx context.Context, gameID string) (Turn, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	s, err := e.livePlaying(ctx, gameID)
	if err != nil {
		return Turn{}, err
	}
	round := 1
	if cur, ok := e.turns.Current(gameID); ok {
		round = cur.Round
	}
	return e.advanceLocked(ctx, s, round)
}

func (e *Engine) CurrentTurn(ctx context.Context, gameID string) (Turn, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	if _, err := e.livePlaying(ctx, gameID); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			return Turn{}, ErrNoActiveTurn
		}
		return Turn{}, err
	}
	t, ok := e.turns.Current(gameID)
	if !ok {
		return Turn{}, ErrNoActiveTurn
	}
	return t, nil
}

// GenerateWord replaces the word of the current turn.
func (e *Engine) GenerateWord(ctx context.Context, gameID string) (string, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	s, err := e.livePlaying(ctx, gameID)
	if err != nil {
		return "", err
	}
	t, ok := e.turns.Current(gameID)
	if !ok {
		return "", ErrNoActiveTurn
	}
	return e.replaceWord(ctx, s, t)
}

func (e *Engine) replaceWord(ctx context.Context, s *Session, t Turn) (string, error) {
	word, err := e.words.Generate(ctx, s.ID, s.Difficulty)
	if err != nil {
		return "", err
	}
	e.turns.SetWord(s.ID, word)
	e.gateway.ToGame(s.ID).Emit(EventNewWord, map[string]any{"gameId": s.ID, "turn": t.Number})
	e.sendSecret(s.ID, t.Describer, word)
	return word, nil
}

func (e *Engine) CurrentWord(ctx context.Context, gameID string) (string, error) {
	t, err := e.CurrentTurn(ctx, gameID)
	if err != nil {
		return "", err
	}
	if t.Word == "" {
		return "", ErrNoWord
	}
	return t.Word, nil
}

// ChatInput is one chat message as received from a connection.
type ChatInput struct {
	GameID   string
	User     string
	SocketID string
	Role     Role
	Message  string
	// TargetWord is the word the client believes is current. The server's
	// word wins whenever a turn is running.
	TargetWord string
}

type ChatVerdict struct {
	Delivered bool             `json:"delivered"`
	Correct   bool             `json:"correct"`
	Rejection anticheat.Result `json:"rejection"`
}

// Chat validates, relays and scores a chat message. Rejected messages go back
// to the sender only.
func (e *Engine) Chat(ctx context.Context, in ChatInput) (ChatVerdict, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return ChatVerdict{}, ErrEmptyMessage
	}

	unlock := e.rooms.lock(in.GameID)
	defer unlock()

	s, _, err := e.load(ctx, in.GameID)
	if err != nil {
		return ChatVerdict{}, err
	}
	if s.Status == StatusFinished {
		return ChatVerdict{}, ErrInvalidStatus
	}

	role := in.Role
	turn, hasTurn := Turn{}, false
	if s.Status == StatusPlaying {
		turn, hasTurn = e.turns.Current(in.GameID)
	}
	if hasTurn {
		if in.User == turn.Describer {
			role = RoleDescriber
		} else if role == RoleDescriber {
			role = RoleGuesser
		}
	}
	if role != RoleDescriber {
		role = RoleGuesser
	}

	res := anticheat.Result{Legal: true}
	if anticheat.Profane(msg) {
		res = anticheat.Result{Reason: anticheat.ReasonProfanity}
	} else if role == RoleDescriber {
		target := turn.Word
		if target == "" {
			target = in.TargetWord
		}
		res = anticheat.Validate(msg, target, anticheat.Describer)
	}
	if !res.Legal {
		e.log.Debug().Str("game", in.GameID).Str("user", in.User).Str("reason", string(res.Reason)).Msg("message rejected")
		if in.SocketID != "" {
			e.gateway.ToSocket(in.SocketID).Emit(EventMessageRejected, map[string]any{
				"gameId":  in.GameID,
				"message": msg,
				"reason":  res.Reason,
				"token":   res.Token,
			})
		}
		return ChatVerdict{Rejection: res}, nil
	}

	kind := KindMessage
	if role == RoleDescriber {
		kind = KindDescription
	}
	cm := ChatMessage{Sender: in.User, Content: msg, Kind: kind, Role: role, Timestamp: e.now()}
	e.chats.Append(in.GameID, cm)
	e.gateway.ToGame(in.GameID).Emit(EventChatMessage, map[string]any{
		"gameId":    in.GameID,
		"user":      cm.Sender,
		"message":   cm.Content,
		"role":      cm.Role,
		"kind":      cm.Kind,
		"timestamp": cm.Timestamp,
	})

	v := ChatVerdict{Delivered: true, Rejection: res}
	if hasTurn && role == RoleGuesser && turn.Word != "" && canGuess(s, turn, in.User) && strings.EqualFold(msg, turn.Word) {
		v.Correct = true
		e.correctGuess(ctx, s, turn, in.User)
	}
	return v, nil
}

// canGuess uses the current roster, so players who joined or swapped after
// the turn started are judged by the team they are on now.
func canGuess(s *Session, t Turn, user string) bool {
	team, ok := s.TeamOf(user)
	return ok && team == t.Team && user != t.Describer
}

func (e *Engine) correctGuess(ctx context.Context, s *Session, t Turn, user string) {
	if _, err := e.ledger.Add(s.ID, user, 1); err != nil {
		e.log.Error().Err(err).Str("game", s.ID).Str("user", user).Msg("score guess")
		return
	}
	room := e.gateway.ToGame(s.ID)
	room.Emit(EventWordGuessed, map[string]any{"gameId": s.ID, "user": user, "word": t.Word})
	room.Emit(EventSystemMessage, map[string]any{"gameId": s.ID, "message": "Correct!", "user": user})
	if _, err := e.replaceWord(ctx, s, t); err != nil {
		e.log.Error().Err(err).Str("game", s.ID).Msg("generate word")
	}
}

func (e *Engine) TeamScores(ctx context.Context, gameID string) (TeamScores, error) {
	return e.ledger.CurrentTeamScores(ctx, gameID)
}

func (e *Engine) ChatHistory(ctx context.Context, gameID string) ([]ChatMessage, error) {
	if _, err := e.Game(ctx, gameID); err != nil {
		return nil, err
	}
	return e.chats.History(ctx, gameID)
}

// EndGame terminates a running game now.
func (e *Engine) EndGame(ctx context.Context, gameID string) (Outcome, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	s, err := e.livePlaying(ctx, gameID)
	if err != nil {
		return Outcome{}, err
	}
	return e.finishLocked(ctx, s, "terminated")
}

// Reconcile retries the settlement of a game whose earlier attempt failed,
// storing a chat transcript that could not be saved at game end as well.
func (e *Engine) Reconcile(ctx context.Context, gameID string) (Outcome, error) {
	unlock := e.rooms.lock(gameID)
	defer unlock()

	s, _, err := e.load(ctx, gameID)
	if err != nil {
		return Outcome{}, err
	}
	if s.Status != StatusFinished {
		return Outcome{}, ErrInvalidStatus
	}
	chatPending := e.chats.Pending(gameID)
	if err := e.chats.Flush(ctx, gameID); err != nil {
		return Outcome{}, fmt.Errorf("store chat: %w", err)
	}
	out, err := e.ledger.Reconcile(ctx, s)
	if errors.Is(err, ErrNothingToReconcile) && chatPending {
		// scores were settled before, only the chat was left behind
		scores := TeamScores{Team1: s.Team1.Score, Team2: s.Team2.Score}
		winner, _ := scores.Winner()
		out, err = Outcome{Scores: scores, Winner: winner}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	e.rooms.drop(gameID)
	return out, nil
}

// finishLocked ends a game: stops the countdown, settles scores, stores the
// chat and broadcasts endGame. If settling fails the live session and its
// ledger entry stay behind for Reconcile. Caller holds the game lock.
func (e *Engine) finishLocked(ctx context.Context, s *Session, reason string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	e.scheduler.Stop(s.ID)

	out, rerr := e.ledger.Reconcile(ctx, s)
	if rerr != nil {
		e.log.Error().Err(rerr).Str("game", s.ID).Msg("reconcile failed, ledger kept")
		_ = s.Advance(StatusFinished)
		scores := sumTeams(s, e.ledger.Points(s.ID))
		winner, _ := scores.Winner()
		out = Outcome{Scores: scores, Winner: winner, Players: e.ledger.Points(s.ID)}
	}

	history, _ := e.chats.History(ctx, s.ID)
	if err := e.chats.Flush(ctx, s.ID); err != nil {
		e.log.Error().Err(err).Str("game", s.ID).Msg("store chat")
	}
	e.turns.Discard(s.ID)
	e.words.Forget(s.ID)
	if rerr == nil {
		e.rooms.drop(s.ID)
	}

	if e.exportFile != "" {
		if err := ExportResults(e.exportFile, s, out, history); err != nil {
			e.log.Error().Err(err).Str("file", e.exportFile).Msg("export results")
		}
	}

	e.log.Info().Str("game", s.ID).Str("reason", reason).Msg("game finished")
	e.gateway.ToGame(s.ID).Emit(EventEndGame, map[string]any{
		"gameId":  s.ID,
		"reason":  reason,
		"scores":  out.Scores,
		"winner":  out.Winner,
		"players": out.Players,
	})
	return out, rerr
}

// Close stops every running countdown.
func (e *Engine) Close() {
	e.scheduler.StopAll()
}

// roundDriver feeds scheduler callbacks back into the engine under the game
// lock.
type roundDriver struct{ e *Engine }

func (d roundDriver) Tick(ctx context.Context, gameID string, remaining int) {
	unlock := d.e.rooms.lock(gameID)
	defer unlock()
	if ctx.Err() != nil {
		return
	}
	d.e.gateway.ToGame(gameID).Emit(EventTimerTick, remaining)
}

func (d roundDriver) NextRound(ctx context.Context, gameID string, round int) {
	unlock := d.e.rooms.lock(gameID)
	defer unlock()
	if ctx.Err() != nil {
		return
	}
	s, ok := d.e.rooms.get(gameID)
	if !ok || s.Status != StatusPlaying {
		return
	}
	if _, err := d.e.advanceLocked(ctx, s, round); err != nil && !errors.Is(err, ErrTurnsExhausted) {
		d.e.log.Error().Err(err).Str("game", gameID).Int("round", round).Msg("next round")
	}
}

func (d roundDriver) Finish(ctx context.Context, gameID string) {
	unlock := d.e.rooms.lock(gameID)
	defer unlock()
	s, ok := d.e.rooms.get(gameID)
	if !ok || s.Status != StatusPlaying {
		return
	}
	if _, err := d.e.finishLocked(ctx, s, "rounds complete"); err != nil {
		d.e.log.Error().Err(err).Str("game", gameID).Msg("finish game")
	}
}

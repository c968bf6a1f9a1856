package ws

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/alias/internal/config"
	"github.com/kiliankoe/alias/internal/game"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Engine is the part of the game engine the socket handlers drive.
type Engine interface {
	Join(ctx context.Context, gameID, player, socketID string) (game.Roster, error)
	SwapTeam(ctx context.Context, gameID, player string) (game.Roster, error)
	StartGame(ctx context.Context, gameID string, roundSeconds, totalRounds int) (*game.Session, error)
	Chat(ctx context.Context, in game.ChatInput) (game.ChatVerdict, error)
	Disconnect(socketID string)
}

// conn is the subset of socketio.Conn the handlers use.
type conn interface {
	ID() string
	Emit(event string, v ...interface{})
	Join(room string)
	Leave(room string)
	Context() interface{}
	SetContext(v interface{})
}

type ConnCtx struct {
	GameID string
	User   string
}

type Server struct {
	io     *socketio.Server
	engine Engine
	config config.Config

	mu       sync.RWMutex
	conns    map[string]conn            // socketID -> Conn
	members  map[string]map[string]conn // gameID -> socketID -> Conn
	limiters map[string]*rate.Limiter   // socketID -> chat limiter
}

func New(cfg config.Config) *Server {
	return &Server{
		io:       socketio.NewServer(nil),
		config:   cfg,
		conns:    make(map[string]conn),
		members:  make(map[string]map[string]conn),
		limiters: make(map[string]*rate.Limiter),
	}
}

// ToGame addresses every connection that joined the game's room.
func (srv *Server) ToGame(gameID string) game.Emitter { return roomEmitter{srv: srv, room: gameID} }

// ToSocket addresses a single connection. Unknown sockets are ignored.
func (srv *Server) ToSocket(socketID string) game.Emitter {
	return socketEmitter{srv: srv, sid: socketID}
}

type roomEmitter struct {
	srv  *Server
	room string
}

func (e roomEmitter) Emit(event string, payload any) {
	e.srv.io.BroadcastToRoom("/", e.room, event, payload)
}

type socketEmitter struct {
	srv *Server
	sid string
}

func (e socketEmitter) Emit(event string, payload any) {
	e.srv.mu.RLock()
	c, ok := e.srv.conns[e.sid]
	e.srv.mu.RUnlock()
	if ok {
		c.Emit(event, payload)
	}
}

type joinPayload struct {
	GameID string `json:"gameId"`
	User   string `json:"user"`
}

type chatPayload struct {
	GameID     string `json:"gameId"`
	User       string `json:"user"`
	Role       string `json:"role"`
	Message    string `json:"message"`
	TargetWord string `json:"targetWord"`
}

type startPayload struct {
	GameID       string `json:"gameId"`
	RoundSeconds int    `json:"roundSeconds"`
	TotalRounds  int    `json:"totalRounds"`
}

type swapPayload struct {
	GameID string `json:"gameId"`
	User   string `json:"user"`
}

// Mount attaches the Socket.IO server with its handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine, eng Engine) *socketio.Server {
	srv.engine = eng
	io := srv.io

	io.OnConnect("/", func(s socketio.Conn) error {
		srv.connect(s)
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "joinRoom", func(s socketio.Conn, p joinPayload) map[string]any {
		return srv.onJoin(s, p)
	})
	io.OnEvent("/", "chatMessage", func(s socketio.Conn, p chatPayload) map[string]any {
		return srv.onChat(s, p)
	})
	io.OnEvent("/", "startGame", func(s socketio.Conn, p startPayload) map[string]any {
		return srv.onStart(s, p)
	})
	io.OnEvent("/", "swapTeam", func(s socketio.Conn, p swapPayload) map[string]any {
		return srv.onSwap(s, p)
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.disconnect(s)
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	return io
}

func (srv *Server) connect(s conn) {
	s.SetContext(&ConnCtx{})
	srv.mu.Lock()
	srv.conns[s.ID()] = s
	srv.limiters[s.ID()] = rate.NewLimiter(rate.Limit(srv.config.ChatRate), srv.config.ChatBurst)
	srv.mu.Unlock()
}

func (srv *Server) disconnect(s conn) {
	if ctx, ok := s.Context().(*ConnCtx); ok && ctx.GameID != "" {
		srv.removeMember(ctx.GameID, s)
	}
	srv.mu.Lock()
	delete(srv.conns, s.ID())
	delete(srv.limiters, s.ID())
	srv.mu.Unlock()
	if srv.engine != nil {
		srv.engine.Disconnect(s.ID())
	}
}

func (srv *Server) onJoin(s conn, p joinPayload) map[string]any {
	if p.GameID == "" || strings.TrimSpace(p.User) == "" {
		return srv.err(s, "bad_request", "gameId and user are required")
	}
	// join the room first so the joiner receives its own userJoined broadcast
	s.Join(p.GameID)
	roster, err := srv.engine.Join(context.Background(), p.GameID, p.User, s.ID())
	if err != nil {
		s.Leave(p.GameID)
		code, msg := errorCode(err)
		return srv.err(s, code, msg)
	}
	if prev, ok := s.Context().(*ConnCtx); ok && prev.GameID != "" && prev.GameID != p.GameID {
		s.Leave(prev.GameID)
		srv.removeMember(prev.GameID, s)
	}
	s.SetContext(&ConnCtx{GameID: p.GameID, User: roster.User})
	srv.addMember(p.GameID, s)
	log.Info().Str("sid", s.ID()).Str("game", p.GameID).Str("user", roster.User).Str("team", string(roster.UsersTeam)).Msg("joinRoom")
	return map[string]any{"ok": true, "team": roster.UsersTeam}
}

func (srv *Server) onChat(s conn, p chatPayload) map[string]any {
	if !srv.allow(s.ID()) {
		return srv.err(s, "rate_limited", "Too many messages")
	}
	in := game.ChatInput{
		GameID:     p.GameID,
		User:       p.User,
		SocketID:   s.ID(),
		Role:       game.Role(p.Role),
		Message:    p.Message,
		TargetWord: p.TargetWord,
	}
	// a joined connection speaks for its own player
	if ctx, ok := s.Context().(*ConnCtx); ok && ctx.User != "" && ctx.GameID == p.GameID {
		in.User = ctx.User
	}
	if in.User == "" {
		return srv.err(s, "bad_request", "user is required")
	}
	v, err := srv.engine.Chat(context.Background(), in)
	if err != nil {
		code, msg := errorCode(err)
		return srv.err(s, code, msg)
	}
	return map[string]any{"delivered": v.Delivered, "correct": v.Correct}
}

func (srv *Server) onStart(s conn, p startPayload) map[string]any {
	sess, err := srv.engine.StartGame(context.Background(), p.GameID, p.RoundSeconds, p.TotalRounds)
	if err != nil {
		code, msg := errorCode(err)
		return srv.err(s, code, msg)
	}
	log.Info().Str("sid", s.ID()).Str("game", p.GameID).Int("roundSeconds", sess.RoundSeconds).Int("totalRounds", sess.TotalRounds).Msg("startGame")
	return map[string]any{"ok": true}
}

func (srv *Server) onSwap(s conn, p swapPayload) map[string]any {
	user := p.User
	if ctx, ok := s.Context().(*ConnCtx); ok && ctx.User != "" && ctx.GameID == p.GameID {
		user = ctx.User
	}
	roster, err := srv.engine.SwapTeam(context.Background(), p.GameID, user)
	if err != nil {
		code, msg := errorCode(err)
		return srv.err(s, code, msg)
	}
	return map[string]any{"ok": true, "team": roster.UsersTeam}
}

func (srv *Server) allow(sid string) bool {
	srv.mu.RLock()
	l, ok := srv.limiters[sid]
	srv.mu.RUnlock()
	if !ok {
		return true
	}
	return l.Allow()
}

func (srv *Server) addMember(gameID string, c conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[gameID] == nil {
		srv.members[gameID] = make(map[string]conn)
	}
	srv.members[gameID][c.ID()] = c
}

func (srv *Server) removeMember(gameID string, c conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[gameID]; m != nil {
		delete(m, c.ID())
		if len(m) == 0 {
			delete(srv.members, gameID)
		}
	}
}

// Members returns how many connections are in a game's room.
func (srv *Server) Members(gameID string) int {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return len(srv.members[gameID])
}

func (srv *Server) err(s conn, code, message string) map[string]any {
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}

// errorCode maps engine errors onto the codes sent to clients.
func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		return "game_not_found", "Game not found"
	case errors.Is(err, game.ErrTimerActive):
		return "timer_active", "Game is already running"
	case errors.Is(err, game.ErrInvalidStatus):
		return "invalid_status", err.Error()
	case errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrInvalidSettings),
		errors.Is(err, game.ErrInvalidPlayer),
		errors.Is(err, game.ErrEmptyMessage),
		errors.Is(err, game.ErrPlayerNotInTeam),
		errors.Is(err, game.ErrInvalidTeam):
		return "bad_request", err.Error()
	case errors.Is(err, game.ErrTurnsExhausted):
		return "turns_exhausted", err.Error()
	default:
		log.Error().Err(err).Msg("socket handler failed")
		return "internal", "Internal error"
	}
}

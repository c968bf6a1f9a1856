package ws

import (
	"context"
	"sync"
	"testing"

	"github.com/kiliankoe/alias/internal/config"
	"github.com/kiliankoe/alias/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event string
	args  []interface{}
}

type fakeConn struct {
	id string

	mu    sync.Mutex
	ctx   interface{}
	rooms map[string]bool
	sent  []emitted
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, rooms: make(map[string]bool)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, emitted{event: event, args: v})
}

func (c *fakeConn) Join(room string)         { c.rooms[room] = true }
func (c *fakeConn) Leave(room string)        { delete(c.rooms, room) }
func (c *fakeConn) Context() interface{}     { return c.ctx }
func (c *fakeConn) SetContext(v interface{}) { c.ctx = v }

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, e := range c.sent {
		out = append(out, e.event)
	}
	return out
}

type mockEngine struct{ mock.Mock }

func (m *mockEngine) Join(ctx context.Context, gameID, player, socketID string) (game.Roster, error) {
	args := m.Called(ctx, gameID, player, socketID)
	return args.Get(0).(game.Roster), args.Error(1)
}

func (m *mockEngine) SwapTeam(ctx context.Context, gameID, player string) (game.Roster, error) {
	args := m.Called(ctx, gameID, player)
	return args.Get(0).(game.Roster), args.Error(1)
}

func (m *mockEngine) StartGame(ctx context.Context, gameID string, roundSeconds, totalRounds int) (*game.Session, error) {
	args := m.Called(ctx, gameID, roundSeconds, totalRounds)
	s, _ := args.Get(0).(*game.Session)
	return s, args.Error(1)
}

func (m *mockEngine) Chat(ctx context.Context, in game.ChatInput) (game.ChatVerdict, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(game.ChatVerdict), args.Error(1)
}

func (m *mockEngine) Disconnect(socketID string) { m.Called(socketID) }

func newTestServer(eng Engine) *Server {
	cfg := config.Default()
	cfg.ChatRate = 1
	cfg.ChatBurst = 2
	srv := New(cfg)
	srv.engine = eng
	return srv
}

func TestJoinRoomBindsConnection(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Join", mock.Anything, "g1", "alice", "s1").
		Return(game.Roster{GameID: "g1", User: "alice", UsersTeam: game.Team1}, nil)
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)

	ack := srv.onJoin(c, joinPayload{GameID: "g1", User: "alice"})

	assert.Equal(t, true, ack["ok"])
	assert.Equal(t, game.Team1, ack["team"])
	assert.True(t, c.rooms["g1"])
	assert.Equal(t, 1, srv.Members("g1"))
	ctx, ok := c.Context().(*ConnCtx)
	require.True(t, ok)
	assert.Equal(t, "alice", ctx.User)
	eng.AssertExpectations(t)
}

func TestJoinRoomUnknownGame(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Join", mock.Anything, "missing", "bob", "s1").Return(game.Roster{}, game.ErrGameNotFound)
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)

	ack := srv.onJoin(c, joinPayload{GameID: "missing", User: "bob"})

	assert.Equal(t, "Game not found", ack["error"])
	assert.False(t, c.rooms["missing"])
	assert.Equal(t, 0, srv.Members("missing"))
	assert.Equal(t, []string{"error"}, c.events())
}

func TestJoinRoomRequiresUser(t *testing.T) {
	srv := newTestServer(&mockEngine{})
	c := newFakeConn("s1")
	srv.connect(c)

	ack := srv.onJoin(c, joinPayload{GameID: "g1", User: "  "})
	assert.NotNil(t, ack["error"])
}

func TestChatUsesBoundPlayer(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Join", mock.Anything, "g1", "alice", "s1").
		Return(game.Roster{GameID: "g1", User: "alice", UsersTeam: game.Team1}, nil)
	eng.On("Chat", mock.Anything, mock.MatchedBy(func(in game.ChatInput) bool {
		return in.User == "alice" && in.SocketID == "s1" && in.Message == "hello"
	})).Return(game.ChatVerdict{Delivered: true}, nil)
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)
	srv.onJoin(c, joinPayload{GameID: "g1", User: "alice"})

	ack := srv.onChat(c, chatPayload{GameID: "g1", User: "mallory", Message: "hello", Role: "guesser"})

	assert.Equal(t, true, ack["delivered"])
	assert.Equal(t, false, ack["correct"])
	eng.AssertExpectations(t)
}

func TestChatRateLimited(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Chat", mock.Anything, mock.Anything).Return(game.ChatVerdict{Delivered: true}, nil)
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)

	p := chatPayload{GameID: "g1", User: "alice", Message: "hi"}
	assert.Equal(t, true, srv.onChat(c, p)["delivered"])
	assert.Equal(t, true, srv.onChat(c, p)["delivered"])
	// burst of two used up; the refill rate is far below test speed
	ack := srv.onChat(c, p)
	assert.Equal(t, "Too many messages", ack["error"])
	eng.AssertNumberOfCalls(t, "Chat", 2)
}

func TestStartGameErrors(t *testing.T) {
	eng := &mockEngine{}
	eng.On("StartGame", mock.Anything, "g1", 5, 2).Return(nil, game.ErrTimerActive)
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)

	ack := srv.onStart(c, startPayload{GameID: "g1", RoundSeconds: 5, TotalRounds: 2})
	assert.Equal(t, "Game is already running", ack["error"])
}

func TestSwapTeam(t *testing.T) {
	eng := &mockEngine{}
	eng.On("SwapTeam", mock.Anything, "g1", "alice").
		Return(game.Roster{GameID: "g1", User: "alice", UsersTeam: game.Team2}, nil)
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)

	ack := srv.onSwap(c, swapPayload{GameID: "g1", User: "alice"})
	assert.Equal(t, game.Team2, ack["team"])
}

func TestDisconnectForgetsConnection(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Join", mock.Anything, "g1", "alice", "s1").
		Return(game.Roster{GameID: "g1", User: "alice", UsersTeam: game.Team1}, nil)
	eng.On("Disconnect", "s1").Return()
	srv := newTestServer(eng)
	c := newFakeConn("s1")
	srv.connect(c)
	srv.onJoin(c, joinPayload{GameID: "g1", User: "alice"})

	srv.disconnect(c)

	assert.Equal(t, 0, srv.Members("g1"))
	srv.ToSocket("s1").Emit(game.EventSecretWord, "ignored")
	assert.NotContains(t, c.events(), game.EventSecretWord)
	eng.AssertCalled(t, "Disconnect", "s1")
}

func TestToSocketEmitsToConnection(t *testing.T) {
	srv := newTestServer(&mockEngine{})
	c := newFakeConn("s1")
	srv.connect(c)

	srv.ToSocket("s1").Emit(game.EventSecretWord, map[string]any{"word": "apple"})
	srv.ToSocket("other").Emit(game.EventSecretWord, "nobody")

	assert.Equal(t, []string{game.EventSecretWord}, c.events())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{game.ErrGameNotFound, "game_not_found"},
		{game.ErrTimerActive, "timer_active"},
		{game.ErrNotEnoughPlayers, "bad_request"},
		{game.ErrTurnsExhausted, "turns_exhausted"},
		{context.Canceled, "internal"},
	}
	for _, tt := range tests {
		code, _ := errorCode(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

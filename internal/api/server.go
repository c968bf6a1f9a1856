// Package api is the REST surface of the game engine.
package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/alias/internal/config"
	"github.com/kiliankoe/alias/internal/game"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type Server struct {
	engine *game.Engine
	config config.Config
}

func New(engine *game.Engine, cfg config.Config) *Server {
	registerValidators()
	return &Server{engine: engine, config: cfg}
}

// CORS builds the middleware for the configured origins.
func CORS(cfg config.Config) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Origin"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			cc.AllowAllOrigins = true
			cc.AllowOrigins = nil
			break
		}
		cc.AllowOrigins = append(cc.AllowOrigins, o)
	}
	if !cc.AllowAllOrigins && len(cc.AllowOrigins) == 0 {
		cc.AllowOrigins = []string{"http://localhost"}
	}
	return cors.New(cc)
}

// Register mounts every route under /api.
func (s *Server) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.POST("/games", s.createGame)
	g.GET("/games", s.listGames)
	g.GET("/games/:id", s.getGame)
	g.POST("/games/:id/users", s.addUser)
	g.DELETE("/games/:id/users/:username", s.removeUser)
	g.GET("/games/:id/turn", s.currentTurn)
	g.POST("/games/:id/turn", s.switchTurn)
	g.GET("/games/:id/word", s.currentWord)
	g.POST("/games/:id/word", s.generateWord)
	g.GET("/games/:id/scores", s.scores)
	g.GET("/games/:id/chat", s.chat)
	g.POST("/games/:id/end", s.endGame)
	g.POST("/games/:id/reconcile", s.reconcile)
	g.GET("/games/:id/qr", s.qr)
	g.GET("/users/:username", s.user)
}

type createGameRequest struct {
	Name         string `json:"name" binding:"required,gamename"`
	Difficulty   string `json:"difficulty" binding:"difficulty"`
	RoundSeconds int    `json:"roundSeconds" binding:"gte=0,lte=600"`
	TotalRounds  int    `json:"totalRounds" binding:"gte=0,lte=20"`
}

var createGameMessages = bindMessages{
	"Name": {
		"required": "name is required",
		"gamename": "name must be 1-40 printable characters",
	},
	"Difficulty":   {"difficulty": "difficulty must be easy, medium or hard"},
	"RoundSeconds": {"lte": "roundSeconds is too large", "gte": "roundSeconds must not be negative"},
	"TotalRounds":  {"lte": "totalRounds is too large", "gte": "totalRounds must not be negative"},
}

func (s *Server) createGame(c *gin.Context) {
	var req createGameRequest
	if !bindJSON(c, &req, createGameMessages, "invalid game") {
		return
	}
	name, _ := validateText("name", req.Name, maxGameNameLength)
	sess, err := s.engine.CreateGame(c.Request.Context(), game.GameSettings{
		Name:         name,
		Difficulty:   game.Difficulty(strings.ToLower(req.Difficulty)),
		RoundSeconds: req.RoundSeconds,
		TotalRounds:  req.TotalRounds,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) listGames(c *gin.Context) {
	games, err := s.engine.NotStartedGames(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if games == nil {
		games = []*game.Session{}
	}
	c.JSON(http.StatusOK, games)
}

func (s *Server) getGame(c *gin.Context) {
	sess, err := s.engine.Game(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

type addUserRequest struct {
	Team     string `json:"team" binding:"required,team"`
	Username string `json:"username" binding:"required,username"`
}

var addUserMessages = bindMessages{
	"Team":     {"required": "team is required", "team": "team must be team1 or team2"},
	"Username": {"required": "username is required", "username": "username must be 1-24 printable characters"},
}

func (s *Server) addUser(c *gin.Context) {
	var req addUserRequest
	if !bindJSON(c, &req, addUserMessages, "invalid user") {
		return
	}
	username, _ := validateText("username", req.Username, maxUsernameLength)
	roster, err := s.engine.AddUser(c.Request.Context(), c.Param("id"), game.TeamID(req.Team), username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

func (s *Server) removeUser(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := s.engine.Game(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	username := c.Param("username")
	team, ok := sess.TeamOf(username)
	if !ok {
		fail(c, game.ErrPlayerNotInTeam)
		return
	}
	roster, err := s.engine.RemoveUser(ctx, sess.ID, team, username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

func (s *Server) currentTurn(c *gin.Context) {
	t, err := s.engine.CurrentTurn(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) switchTurn(c *gin.Context) {
	t, err := s.engine.SwitchTurn(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) currentWord(c *gin.Context) {
	w, err := s.engine.CurrentWord(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"word": w})
}

func (s *Server) generateWord(c *gin.Context) {
	w, err := s.engine.GenerateWord(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"word": w})
}

func (s *Server) scores(c *gin.Context) {
	sc, err := s.engine.TeamScores(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) chat(c *gin.Context) {
	msgs, err := s.engine.ChatHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []game.ChatMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) endGame(c *gin.Context) {
	out, err := s.engine.EndGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) reconcile(c *gin.Context) {
	out, err := s.engine.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) user(c *gin.Context) {
	u, err := s.engine.User(c.Request.Context(), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// qr renders a PNG QR code pointing players at the game.
func (s *Server) qr(c *gin.Context) {
	sess, err := s.engine.Game(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(c.Request, sess.ID), qrcode.Medium, qrSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// joinURL is the public game URL, derived from the request when no public
// URL is configured.
func (s *Server) joinURL(r *http.Request, gameID string) string {
	base := strings.TrimSuffix(s.config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/games/" + url.PathEscape(gameID)
}

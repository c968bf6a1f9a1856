// Package storage is the Postgres implementation of the game repository.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiliankoe/alias/internal/game"
)

var (
	ErrUnexpectedDatabase = errors.New("unexpected database error")
	ErrDuplicateGame      = errors.New("game already exists")
	ErrNoWords            = errors.New("no words stored for tier")
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Close() { r.pool.Close() }

// wrap maps driver errors onto the repository's error kinds. notFound is
// returned for missing rows.
func wrap(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
}

const gameColumns = `id, name, difficulty, status, round_seconds, total_rounds, current_turn,
	team1_players, team1_chat_id, team1_score, team2_players, team2_chat_id, team2_score, created_at`

func scanGame(row pgx.Row) (*game.Session, error) {
	var s game.Session
	err := row.Scan(&s.ID, &s.Name, &s.Difficulty, &s.Status, &s.RoundSeconds, &s.TotalRounds, &s.CurrentTurn,
		&s.Team1.Players, &s.Team1.ChatID, &s.Team1.Score,
		&s.Team2.Players, &s.Team2.ChatID, &s.Team2.Score, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepo) CreateGame(ctx context.Context, s *game.Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO games (`+gameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.Name, s.Difficulty, s.Status, s.RoundSeconds, s.TotalRounds, s.CurrentTurn,
		players(s.Team1), s.Team1.ChatID, s.Team1.Score,
		players(s.Team2), s.Team2.ChatID, s.Team2.Score, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// "23505" is the PostgreSQL error code for unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateGame
		}
		return wrap(err, game.ErrGameNotFound)
	}
	return nil
}

func players(t game.Team) []string {
	if t.Players == nil {
		return []string{}
	}
	return t.Players
}

func (r *PostgresRepo) GetGame(ctx context.Context, id string) (*game.Session, error) {
	s, err := scanGame(r.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(err, game.ErrGameNotFound)
	}
	return s, nil
}

func (r *PostgresRepo) GamesByStatus(ctx context.Context, status game.Status) ([]*game.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, wrap(err, game.ErrGameNotFound)
	}
	defer rows.Close()

	var out []*game.Session
	for rows.Next() {
		s, err := scanGame(rows)
		if err != nil {
			return nil, wrap(err, game.ErrGameNotFound)
		}
		out = append(out, s)
	}
	return out, wrap(rows.Err(), game.ErrGameNotFound)
}

// updateGame is shared by SaveGame and FinishGame.
func updateGame(ctx context.Context, q interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}, s *game.Session) error {
	tag, err := q.Exec(ctx, `UPDATE games SET
		name = $2, difficulty = $3, status = $4, round_seconds = $5, total_rounds = $6, current_turn = $7,
		team1_players = $8, team1_chat_id = $9, team1_score = $10,
		team2_players = $11, team2_chat_id = $12, team2_score = $13
		WHERE id = $1`,
		s.ID, s.Name, s.Difficulty, s.Status, s.RoundSeconds, s.TotalRounds, s.CurrentTurn,
		players(s.Team1), s.Team1.ChatID, s.Team1.Score,
		players(s.Team2), s.Team2.ChatID, s.Team2.Score)
	if err != nil {
		return wrap(err, game.ErrGameNotFound)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrGameNotFound
	}
	return nil
}

func (r *PostgresRepo) SaveGame(ctx context.Context, s *game.Session) error {
	return updateGame(ctx, r.pool, s)
}

func (r *PostgresRepo) GetUser(ctx context.Context, username string) (game.User, error) {
	u := game.User{Username: username}
	err := r.pool.QueryRow(ctx,
		`SELECT games_played, games_won, words_guessed, created_at FROM users WHERE username = $1`, username).
		Scan(&u.Stats.GamesPlayed, &u.Stats.GamesWon, &u.Stats.WordsGuessed, &u.CreatedAt)
	if err != nil {
		return game.User{}, wrap(err, game.ErrUserNotFound)
	}
	return u, nil
}

// FinishGame stores the final game row and upserts every player's stats in a
// single transaction.
func (r *PostgresRepo) FinishGame(ctx context.Context, s *game.Session, results []game.PlayerResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrap(err, game.ErrGameNotFound)
	}
	defer tx.Rollback(ctx)

	if err := updateGame(ctx, tx, s); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		won := 0
		if res.Won {
			won = 1
		}
		batch.Queue(`INSERT INTO users (username, games_played, games_won, words_guessed)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (username) DO UPDATE SET
				games_played = users.games_played + 1,
				games_won = users.games_won + EXCLUDED.games_won,
				words_guessed = users.words_guessed + EXCLUDED.words_guessed`,
			res.Username, won, res.WordsGuessed)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrap(err, game.ErrUserNotFound)
	}
	return wrap(tx.Commit(ctx), game.ErrGameNotFound)
}

func (r *PostgresRepo) SaveChat(ctx context.Context, gameID string, msgs []game.ChatMessage) error {
	rows := make([][]any, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []any{gameID, m.Sender, m.Content, string(m.Kind), string(m.Role), m.Timestamp})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"chat_messages"},
		[]string{"game_id", "sender", "content", "kind", "role", "sent_at"},
		pgx.CopyFromRows(rows))
	return wrap(err, game.ErrGameNotFound)
}

func (r *PostgresRepo) ChatHistory(ctx context.Context, gameID string) ([]game.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sender, content, kind, role, sent_at FROM chat_messages WHERE game_id = $1 ORDER BY id`, gameID)
	if err != nil {
		return nil, wrap(err, game.ErrGameNotFound)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.ChatMessage, error) {
		var m game.ChatMessage
		var sentAt time.Time
		err := row.Scan(&m.Sender, &m.Content, &m.Kind, &m.Role, &sentAt)
		m.Timestamp = sentAt.UTC()
		return m, err
	})
	if err != nil {
		return nil, wrap(err, game.ErrGameNotFound)
	}
	return msgs, nil
}

// Word returns a random stored word of the tier.
func (r *PostgresRepo) Word(ctx context.Context, tier string) (string, error) {
	var w string
	err := r.pool.QueryRow(ctx, `SELECT word FROM words WHERE tier = $1 ORDER BY RANDOM() LIMIT 1`, tier).Scan(&w)
	if err != nil {
		return "", wrap(err, ErrNoWords)
	}
	return w, nil
}

// AddWords inserts words into a tier, skipping ones already stored. It
// returns how many were new.
func (r *PostgresRepo) AddWords(ctx context.Context, tier string, words []string) (int, error) {
	batch := &pgx.Batch{}
	for _, w := range words {
		batch.Queue(`INSERT INTO words (tier, word) VALUES ($1, $2) ON CONFLICT DO NOTHING`, tier, w)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	added := 0
	for range words {
		tag, err := br.Exec()
		if err != nil {
			return added, wrap(err, ErrNoWords)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

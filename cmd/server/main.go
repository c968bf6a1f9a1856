package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/alias/internal/ai"
	"github.com/kiliankoe/alias/internal/ai/ollama"
	"github.com/kiliankoe/alias/internal/ai/openai"
	"github.com/kiliankoe/alias/internal/api"
	"github.com/kiliankoe/alias/internal/config"
	"github.com/kiliankoe/alias/internal/game"
	"github.com/kiliankoe/alias/internal/storage"
	"github.com/kiliankoe/alias/internal/words"
	"github.com/kiliankoe/alias/internal/ws"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "v1.0.0-dev"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if err := newCmd(&cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "alias",
		Short:         "Real-time team word guessing game server.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ApplyEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), *cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("alias {{.Version}}\n")
	return cmd
}

func setupLogging(verbose bool) {
	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	setupLogging(cfg.Verbose)
	logger := zerologlog.Logger

	var (
		repo game.Repository
		pg   *storage.PostgresRepo
	)
	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := storage.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
				return err
			}
			logger.Info().Msg("database migrations applied")
		}
		var err error
		pg, err = storage.NewPostgresRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		logger.Warn().Msg("no database configured, games are kept in memory")
		repo = game.NewMemoryStore()
	}

	src, err := wordSource(cfg, pg)
	if err != nil {
		return err
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.CORS(cfg))
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		logger.Info().Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	sock := ws.New(cfg)
	eng := game.NewEngine(game.Options{
		Repo:                repo,
		Gateway:             sock,
		Words:               src,
		ExportFile:          cfg.ExportFile,
		DefaultRoundSeconds: cfg.RoundSeconds,
		DefaultTotalRounds:  cfg.TotalRounds,
		Logger:              logger,
	})
	defer eng.Close()

	io := sock.Mount(r, eng)
	defer io.Close()

	api.New(eng, cfg).Register(r)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("words", cfg.WordSource).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func wordSource(cfg config.Config, pg *storage.PostgresRepo) (game.WordSource, error) {
	list := words.NewList()
	var provider ai.Provider
	switch cfg.WordSource {
	case config.SourceList:
		return list, nil
	case config.SourcePostgres:
		if pg == nil {
			return nil, errors.New("postgres word source needs a database")
		}
		return pg, nil
	case config.SourceOpenAI:
		provider = openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	case config.SourceOllama:
		provider = ollama.New(cfg.OllamaHost)
	default:
		return nil, fmt.Errorf("unknown word source %q", cfg.WordSource)
	}
	return &words.Model{Provider: provider, Model: cfg.Model, Fallback: list}, nil
}

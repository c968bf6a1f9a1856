package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kiliankoe/alias/internal/config"
	"github.com/kiliankoe/alias/internal/storage"
	"github.com/kiliankoe/alias/internal/words"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	filePath := flag.String("file", "words.csv", "path to a csv of tier,word rows")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	dsn := os.Getenv("ALIAS_DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open words file")
	}
	defer file.Close()

	byTier, err := readWords(file)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read words")
	}

	ctx := context.Background()
	repo, err := storage.NewPostgresRepo(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer repo.Close()

	total := 0
	for tier, list := range byTier {
		added, err := repo.AddWords(ctx, tier, list)
		if err != nil {
			log.Fatal().Err(err).Str("tier", tier).Msg("failed to store words")
		}
		log.Info().Str("tier", tier).Int("read", len(list)).Int("added", added).Msg("tier loaded")
		total += added
	}
	log.Info().Int("added", total).Msg("words loaded")
}

// readWords groups tier,word rows by tier. A header row and rows with an
// unknown tier or a word that does not normalize are skipped.
func readWords(r io.Reader) (map[string][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	out := make(map[string][]string)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		tier := strings.ToLower(strings.TrimSpace(row[0]))
		if !words.ValidTier(tier) {
			continue
		}
		w := words.Normalize(row[1])
		if w == "" {
			continue
		}
		out[tier] = append(out[tier], w)
	}
	return out, nil
}

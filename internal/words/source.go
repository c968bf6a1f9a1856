// Package words provides the secret words players describe.
package words

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

var ErrUnknownTier = errors.New("unknown word tier")

// Tiers lists the supported difficulty tiers in ascending order.
var Tiers = []string{Easy, Medium, Hard}

// Source yields one word for a difficulty tier.
type Source interface {
	Word(ctx context.Context, tier string) (string, error)
}

//go:embed lists/*.txt
var lists embed.FS

// List draws uniformly from fixed per-tier word lists.
type List struct {
	mu    sync.Mutex
	rng   *rand.Rand
	tiers map[string][]string
}

// NewList builds a List from the embedded word lists.
func NewList() *List {
	tiers := make(map[string][]string, len(Tiers))
	for _, tier := range Tiers {
		ws, err := readList(tier)
		if err != nil {
			panic(err)
		}
		tiers[tier] = ws
	}
	return NewListFrom(tiers, rand.NewSource(time.Now().UnixNano()))
}

// NewListFrom builds a List from explicit tiers, mostly for tests.
func NewListFrom(tiers map[string][]string, src rand.Source) *List {
	return &List{rng: rand.New(src), tiers: tiers}
}

func (l *List) Word(_ context.Context, tier string) (string, error) {
	ws := l.tiers[tier]
	if len(ws) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return ws[l.rng.Intn(len(ws))], nil
}

func readList(tier string) ([]string, error) {
	f, err := lists.Open("lists/" + tier + ".txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := Normalize(sc.Text()); w != "" {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

// Normalize lowercases w and returns "" unless it is a single word made of
// letters only.
func Normalize(w string) string {
	w = strings.ToLower(strings.TrimSpace(w))
	w = strings.Trim(w, ".,!?\"'`*")
	if w == "" {
		return ""
	}
	for _, r := range w {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return w
}

// ValidTier reports whether tier is one of Tiers.
func ValidTier(tier string) bool {
	for _, t := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

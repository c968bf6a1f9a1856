// Package anticheat decides whether a describer's chat message leaks the
// secret word. All checks are pure and safe for concurrent use.
package anticheat

import (
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
	"github.com/agnivade/levenshtein"
	"github.com/kljensen/snowball/english"
)

type Role string

const (
	Describer Role = "describer"
	Guesser   Role = "guesser"
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonEditDistance Reason = "too close to the word"
	ReasonDerivative   Reason = "a close derivative of the word"
	ReasonReversed     Reason = "the word reversed"
	ReasonSpelled      Reason = "letters spell the word"
	ReasonOverlap      Reason = "shares most of the word"
	ReasonProfanity    Reason = "profanity"
	ReasonHidden       Reason = "word hidden across the message"
)

// overlapRatio is the share of either string a common run must exceed.
const overlapRatio = 0.66

// minOverlap keeps one and two letter runs from counting as a leak.
const minOverlap = 3

// Result is the outcome of a validation. Token is the offending token when
// the rejection came from a single token.
type Result struct {
	Legal  bool   `json:"legal"`
	Token  string `json:"token,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

func legal() Result { return Result{Legal: true} }

func reject(token string, reason Reason) Result {
	return Result{Legal: false, Token: token, Reason: reason}
}

// Validate checks a message against the target word. Only describers are
// checked; guesses are always legal here and scored elsewhere.
func Validate(message, target string, role Role) Result {
	if role != Describer {
		return legal()
	}
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return legal()
	}

	for _, tok := range Tokenize(message) {
		if r := checkToken(tok, target); !r.Legal {
			return r
		}
	}

	if IsSubsequence(lettersOnly(message), target) {
		return reject("", ReasonHidden)
	}
	return legal()
}

// Profane checks every word of the message on its own, stopwords included.
// It applies to every sender.
func Profane(message string) bool {
	for _, w := range words(message) {
		if goaway.IsProfane(w) {
			return true
		}
	}
	return false
}

// Tokenize lowercases the message, splits it on anything that is not a
// letter or digit and drops stopwords.
func Tokenize(message string) []string {
	fields := words(message)
	out := fields[:0]
	for _, f := range fields {
		if IsStopword(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func words(message string) []string {
	return strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func checkToken(tok, target string) Result {
	if levenshtein.ComputeDistance(tok, target) < Threshold(len([]rune(target))) {
		return reject(tok, ReasonEditDistance)
	}
	if IsDerivative(tok, target) {
		return reject(tok, ReasonDerivative)
	}
	if reverse(tok) == target {
		return reject(tok, ReasonReversed)
	}
	if IsSubsequence(tok, target) {
		return reject(tok, ReasonSpelled)
	}
	if MajorityOverlap(tok, target) {
		return reject(tok, ReasonOverlap)
	}
	if goaway.IsProfane(tok) {
		return reject(tok, ReasonProfanity)
	}
	return legal()
}

// Threshold returns the edit distance below which a token counts as the
// target. It grows with the target length.
func Threshold(n int) int {
	switch {
	case n <= 4:
		return 2
	case n <= 7:
		return 3
	case n <= 10:
		return 4
	default:
		return 5
	}
}

// IsDerivative reports whether tok and target share a stem.
func IsDerivative(tok, target string) bool {
	st := english.Stem(tok, false)
	sg := english.Stem(target, false)
	return st == sg || st == target || sg == tok
}

// IsSubsequence reports whether the letters of target appear in order in s.
func IsSubsequence(s, target string) bool {
	if target == "" {
		return false
	}
	t := []rune(target)
	i := 0
	for _, r := range s {
		if r == t[i] {
			i++
			if i == len(t) {
				return true
			}
		}
	}
	return false
}

// MajorityOverlap reports whether the longest common contiguous run of a and
// b covers more than two thirds of either string.
func MajorityOverlap(a, b string) bool {
	n := longestCommonRun([]rune(a), []rune(b))
	if n < minOverlap {
		return false
	}
	la, lb := float64(len([]rune(a))), float64(len([]rune(b)))
	return float64(n) > overlapRatio*la || float64(n) > overlapRatio*lb
}

func longestCommonRun(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func lettersOnly(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

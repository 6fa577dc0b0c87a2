// Package alias generates and validates list aliases.
package alias

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// ErrExhausted is returned when no unused alias was found within the attempt budget.
var ErrExhausted = errors.New("alias generation attempts exhausted")

// DefaultAttempts bounds regeneration when an alias collides with one the caller already has.
const DefaultAttempts = 5

var validPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Valid reports whether s is usable as a list alias.
func Valid(s string) bool {
	return validPattern.MatchString(s)
}

// DefaultAdjectives is the adjective pool used in production.
var DefaultAdjectives = []string{
	"quick", "lazy", "happy", "sad", "bright", "dark", "shiny", "dull",
	"red", "blue", "green", "yellow", "purple", "orange", "silver", "golden",
	"brave", "calm", "eager", "fancy", "gentle", "jolly", "kind", "lively",
	"proud", "silly", "witty", "zesty",
}

// DefaultNouns is the noun pool used in production.
var DefaultNouns = []string{
	"fox", "dog", "cat", "bird", "fish", "lion", "tiger", "bear",
	"apple", "banana", "cherry", "grape", "lemon", "mango", "peach", "plum",
	"river", "mountain", "ocean", "forest", "meadow", "canyon", "island", "valley",
	"rocket", "comet", "planet", "star",
}

// Generator produces aliases of the form adjective-noun-NNNN.
type Generator struct {
	Adjectives []string
	Nouns      []string
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// NewGenerator returns a Generator using the default word pools.
func NewGenerator() *Generator {
	return &Generator{
		Adjectives: DefaultAdjectives,
		Nouns:      DefaultNouns,
		Intn:       rand.IntN,
	}
}

// Generate returns a random alias. The numeric part is always four digits.
func (g *Generator) Generate() string {
	intn := g.Intn
	if intn == nil {
		intn = rand.IntN
	}
	adj := pick(g.Adjectives, DefaultAdjectives, intn)
	noun := pick(g.Nouns, DefaultNouns, intn)
	return fmt.Sprintf("%s-%s-%d", adj, noun, 1000+intn(9000))
}

// Unique generates aliases until one does not collide, case-insensitively,
// with any alias in taken. It gives up after maxAttempts tries.
func (g *Generator) Unique(taken []string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAttempts
	}
	for i := 0; i < maxAttempts; i++ {
		candidate := g.Generate()
		if !Contains(taken, candidate) {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Contains reports whether aliases holds s, ignoring case.
func Contains(aliases []string, s string) bool {
	for _, a := range aliases {
		if strings.EqualFold(a, s) {
			return true
		}
	}
	return false
}

func pick(pool, fallback []string, intn func(int) int) string {
	if len(pool) == 0 {
		pool = fallback
	}
	return pool[intn(len(pool))]
}

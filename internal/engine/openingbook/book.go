// Package openingbook answers early positions from a move repertoire
// keyed by the full UCI move history, so no engine search is needed
// while a game is still in book.
package openingbook

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Reply is one candidate answer with a selection weight.
type Reply struct {
	Move   string `yaml:"move"`
	Weight int    `yaml:"weight"`
}

// Line maps a space-joined UCI history prefix to its candidate replies.
type Line struct {
	History string  `yaml:"history"`
	Replies []Reply `yaml:"replies"`
}

type bookFile struct {
	MaxPly int    `yaml:"max_ply"`
	Lines  []Line `yaml:"lines"`
}

// Book is a loaded repertoire. Lookup is safe for concurrent use.
type Book struct {
	maxPly int
	lines  map[string][]Reply

	mu  sync.Mutex
	rnd *rand.Rand
}

// Load reads a YAML repertoire from disk.
func Load(path string) (*Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("openingbook: read %s: %w", path, err)
	}
	var bf bookFile
	if err := yaml.Unmarshal(raw, &bf); err != nil {
		return nil, fmt.Errorf("openingbook: parse %s: %w", path, err)
	}
	return build(bf)
}

func build(bf bookFile) (*Book, error) {
	if bf.MaxPly <= 0 {
		bf.MaxPly = 10
	}
	b := &Book{
		maxPly: bf.MaxPly,
		lines:  make(map[string][]Reply, len(bf.Lines)),
		rnd:    rand.New(rand.NewSource(rand.Int63())),
	}
	for _, line := range bf.Lines {
		key := normalizeHistory(strings.Fields(line.History))
		replies := make([]Reply, 0, len(line.Replies))
		for _, r := range line.Replies {
			if strings.TrimSpace(r.Move) == "" {
				return nil, fmt.Errorf("openingbook: empty move in line %q", line.History)
			}
			if r.Weight <= 0 {
				r.Weight = 1
			}
			r.Move = strings.ToLower(strings.TrimSpace(r.Move))
			replies = append(replies, r)
		}
		if len(replies) == 0 {
			continue
		}
		b.lines[key] = replies
	}
	return b, nil
}

// Lookup returns a weighted-random reply for the given history, or
// false when the position is out of book.
func (b *Book) Lookup(history []string) (string, bool) {
	if len(history) >= b.maxPly {
		return "", false
	}
	replies, ok := b.lines[normalizeHistory(history)]
	if !ok {
		return "", false
	}
	return b.pick(replies), true
}

// MaxPly reports the ply after which the book stops answering.
func (b *Book) MaxPly() int { return b.maxPly }

func (b *Book) pick(replies []Reply) string {
	total := 0
	for _, r := range replies {
		total += r.Weight
	}
	b.mu.Lock()
	n := b.rnd.Intn(total)
	b.mu.Unlock()
	for _, r := range replies {
		n -= r.Weight
		if n < 0 {
			return r.Move
		}
	}
	return replies[len(replies)-1].Move
}

func normalizeHistory(history []string) string {
	parts := make([]string, 0, len(history))
	for _, mv := range history {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if mv != "" {
			parts = append(parts, mv)
		}
	}
	return strings.Join(parts, " ")
}

// Default returns the built-in repertoire: mainline answers to the
// common first moves, a couple of plies deep.
func Default() *Book {
	b, err := build(bookFile{
		MaxPly: 8,
		Lines: []Line{
			{History: "e2e4", Replies: []Reply{
				{Move: "e7e5", Weight: 40},
				{Move: "c7c5", Weight: 35},
				{Move: "e7e6", Weight: 15},
				{Move: "c7c6", Weight: 10},
			}},
			{History: "d2d4", Replies: []Reply{
				{Move: "g8f6", Weight: 45},
				{Move: "d7d5", Weight: 40},
				{Move: "e7e6", Weight: 15},
			}},
			{History: "c2c4", Replies: []Reply{
				{Move: "e7e5", Weight: 40},
				{Move: "g8f6", Weight: 35},
				{Move: "c7c5", Weight: 25},
			}},
			{History: "g1f3", Replies: []Reply{
				{Move: "d7d5", Weight: 40},
				{Move: "g8f6", Weight: 40},
				{Move: "c7c5", Weight: 20},
			}},
			{History: "e2e4 e7e5 g1f3", Replies: []Reply{
				{Move: "b8c6", Weight: 70},
				{Move: "g8f6", Weight: 30},
			}},
			{History: "e2e4 e7e5 f1c4", Replies: []Reply{
				{Move: "g8f6", Weight: 60},
				{Move: "b8c6", Weight: 40},
			}},
			{History: "e2e4 c7c5 g1f3", Replies: []Reply{
				{Move: "d7d6", Weight: 45},
				{Move: "b8c6", Weight: 35},
				{Move: "e7e6", Weight: 20},
			}},
			{History: "d2d4 g8f6 c2c4", Replies: []Reply{
				{Move: "e7e6", Weight: 45},
				{Move: "g7g6", Weight: 35},
				{Move: "c7c5", Weight: 20},
			}},
			{History: "d2d4 d7d5 c2c4", Replies: []Reply{
				{Move: "e7e6", Weight: 50},
				{Move: "c7c6", Weight: 50},
			}},
			{History: "e2e4 e7e5 g1f3 b8c6 f1b5", Replies: []Reply{
				{Move: "a7a6", Weight: 70},
				{Move: "g8f6", Weight: 30},
			}},
			{History: "e2e4 e7e5 g1f3 b8c6 f1c4", Replies: []Reply{
				{Move: "g8f6", Weight: 55},
				{Move: "f8c5", Weight: 45},
			}},
		},
	})
	if err != nil {
		panic(err)
	}
	return b
}

package retrieval

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/reviewmesh/core"
)

type entry struct {
	chunk  core.ContextChunk
	tokens map[string]struct{}
	vector []float64
}

// KeywordIndex is a process local token-overlap index. The score of a chunk
// is the number of distinct lowercase tokens it shares with the query.
// Chunks without overlap are never returned; ties keep insertion order.
type KeywordIndex struct {
	mu      sync.RWMutex
	entries []entry
}

// NewKeywordIndex creates an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{}
}

// Add stores a chunk. Adding an existing id replaces its content.
func (k *KeywordIndex) Add(id, content string, metadata map[string]string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e := entry{
		chunk:  core.ContextChunk{ID: id, Content: content, Metadata: maps.Clone(metadata)},
		tokens: tokenSet(content),
	}
	for i := range k.entries {
		if k.entries[i].chunk.ID == id {
			k.entries[i] = e
			return
		}
	}
	k.entries = append(k.entries, e)
}

// Len returns the number of indexed chunks.
func (k *KeywordIndex) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// Query returns up to limit chunks ranked by token overlap with text.
func (k *KeywordIndex) Query(_ context.Context, text string, limit int) ([]core.ContextChunk, error) {
	if limit <= 0 {
		return []core.ContextChunk{}, nil
	}
	query := tokenSet(text)

	k.mu.RLock()
	defer k.mu.RUnlock()

	results := make([]core.ContextChunk, 0, limit)
	for _, e := range k.entries {
		score := 0
		for tok := range query {
			if _, ok := e.tokens[tok]; ok {
				score++
			}
		}
		if score == 0 {
			continue
		}
		c := e.chunk
		c.Score = float64(score)
		c.Metadata = maps.Clone(c.Metadata)
		results = append(results, c)
	}
	return rank(results, limit), nil
}

func rank(results []core.ContextChunk, limit int) []core.ContextChunk {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

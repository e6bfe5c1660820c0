// Package lookup provides the document lookup collaborator used by graph
// nodes, e.g. the travel planner's memory step.
package lookup

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Store returns up to limit documents relevant to query, best first
type Store interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Noop is the absent store; it never finds anything
type Noop struct{}

func (Noop) Search(context.Context, string, int) ([]string, error) { return nil, nil }

// Memory is an in-process store ranked by shared words with the query
type Memory struct {
	mu   sync.RWMutex
	docs []string
}

// NewMemory creates a store seeded with docs
func NewMemory(docs ...string) *Memory {
	m := &Memory{}
	m.Add(docs...)
	return m
}

// Add appends documents; empty ones are skipped
func (m *Memory) Add(docs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if strings.TrimSpace(d) != "" {
			m.docs = append(m.docs, d)
		}
	}
}

// Search ranks by the number of distinct query words a document contains,
// ties broken by insertion order. Documents sharing no word are skipped.
func (m *Memory) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := words(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	type hit struct {
		doc   string
		score int
		order int
	}
	m.mu.RLock()
	var hits []hit
	for i, d := range m.docs {
		docWords := words(d)
		score := 0
		for t := range terms {
			if _, ok := docWords[t]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{doc: d, score: score, order: i})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out, nil
}

func words(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

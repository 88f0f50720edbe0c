package journal

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type inMemoryJournal struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemory creates a concurrency-safe journal that lives for the process lifetime.
func NewInMemory() Journal {
	return &inMemoryJournal{entries: make(map[string]Entry)}
}

func (j *inMemoryJournal) Record(_ context.Context, entry Entry) error {
	key := strings.ToLower(entry.TxHash)

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.entries[key]; exists {
		return ErrDuplicate
	}
	j.entries[key] = entry
	return nil
}

func (j *inMemoryJournal) Get(_ context.Context, txHash string) (Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	entry, ok := j.entries[strings.ToLower(txHash)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (j *inMemoryJournal) ListByAccount(_ context.Context, from string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	j.mu.RLock()
	out := make([]Entry, 0)
	for _, e := range j.entries {
		if from == "" || strings.EqualFold(e.From, from) {
			out = append(out, e)
		}
	}
	j.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

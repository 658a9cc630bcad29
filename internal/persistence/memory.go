package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"innersight/internal/core"
)

// MemoryDB is a process-local Database used for development and tests.
type MemoryDB struct {
	entries  *memoryEntryRepo
	profiles *memoryProfileRepo
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		entries:  &memoryEntryRepo{entries: make(map[string]core.Entry)},
		profiles: &memoryProfileRepo{profiles: make(map[string]core.Profile)},
	}
}

func (m *MemoryDB) Entries() EntryRepository       { return m.entries }
func (m *MemoryDB) Profiles() ProfileRepository    { return m.profiles }
func (m *MemoryDB) Close() error                   { return nil }
func (m *MemoryDB) Ping(ctx context.Context) error { return ctx.Err() }

type memoryEntryRepo struct {
	mu      sync.RWMutex
	entries map[string]core.Entry
}

func (r *memoryEntryRepo) Save(ctx context.Context, entry *core.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[entry.ID]; ok {
		if existing.UserID != entry.UserID {
			return ErrNotFound
		}
		entry.CreatedAt = existing.CreatedAt
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	r.entries[entry.ID] = copyEntry(*entry)
	return nil
}

func (r *memoryEntryRepo) Get(ctx context.Context, userID, id string) (*core.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok || entry.UserID != userID {
		return nil, ErrNotFound
	}
	out := copyEntry(entry)
	return &out, nil
}

func (r *memoryEntryRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || entry.UserID != userID {
		return ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *memoryEntryRepo) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]core.Entry, error) {
	r.mu.RLock()
	all := []core.Entry{}
	for _, e := range r.entries {
		if e.UserID == userID {
			all = append(all, copyEntry(e))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return []core.Entry{}, nil
	}
	all = all[opts.Offset:]
	if limit := opts.limit(); len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func copyEntry(e core.Entry) core.Entry {
	if e.Analysis != nil {
		a := e.Analysis.Clone()
		e.Analysis = &a
	}
	return e
}

type memoryProfileRepo struct {
	mu       sync.RWMutex
	profiles map[string]core.Profile
}

func (r *memoryProfileRepo) Save(ctx context.Context, profile *core.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile.UpdatedAt = time.Now().UTC()
	r.profiles[profile.UserID] = copyProfile(*profile)
	return nil
}

func (r *memoryProfileRepo) Get(ctx context.Context, userID string) (*core.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyProfile(p)
	return &out, nil
}

func copyProfile(p core.Profile) core.Profile {
	p.Personalization.Goals = core.NonBlank(p.Personalization.Goals)
	p.Personalization.Challenges = core.NonBlank(p.Personalization.Challenges)
	return p
}

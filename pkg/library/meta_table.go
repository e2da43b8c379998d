package library

import (
	"sync"

	"catlibrary/pkg/domain"
)

const metaShards = 64

type metaShard struct {
	mu      sync.Mutex
	entries map[domain.BookID]*domain.Metadata
}

// metaTable is a sharded map of book metadata. Each shard has its own lock
// so that updates to one book never wait on books in other shards.
type metaTable struct {
	shards [metaShards]metaShard
}

func newMetaTable() *metaTable {
	t := &metaTable{}
	for i := range t.shards {
		t.shards[i].entries = make(map[domain.BookID]*domain.Metadata)
	}
	return t
}

func (t *metaTable) shard(id domain.BookID) *metaShard {
	return &t.shards[uint64(id)%metaShards]
}

// insert stores meta under id and reports whether id was new.
func (t *metaTable) insert(id domain.BookID, meta domain.Metadata) bool {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		return false
	}
	m := meta
	s.entries[id] = &m
	return true
}

func (t *metaTable) get(id domain.BookID) (domain.Metadata, bool) {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[id]
	if !ok {
		return domain.Metadata{}, false
	}
	return *m, true
}

// update runs fn with exclusive access to the metadata of id.
func (t *metaTable) update(id domain.BookID, fn func(*domain.Metadata) error) error {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[id]
	if !ok {
		return ErrBookNotFound
	}
	return fn(m)
}

// each visits a snapshot of every entry, one shard at a time.
func (t *metaTable) each(fn func(domain.BookID, domain.Metadata)) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		snapshot := make([]domain.Checkout, 0, len(s.entries))
		for id, m := range s.entries {
			snapshot = append(snapshot, domain.Checkout{ID: id, Meta: *m})
		}
		s.mu.Unlock()
		for _, entry := range snapshot {
			fn(entry.ID, entry.Meta)
		}
	}
}

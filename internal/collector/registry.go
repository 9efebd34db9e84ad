package collector

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Bloom sizing for a typical run. Filters only answer definite misses; the
// maps are authoritative.
const (
	expectedPlayers = 100000
	expectedMatches = 50000
	bloomFalseRate  = 0.001
)

// visitedSet is an exact set fronted by a bloom filter.
type visitedSet struct {
	filter *bloom.BloomFilter
	ids    map[string]struct{}
}

func newVisitedSet(n uint) *visitedSet {
	return &visitedSet{
		filter: bloom.NewWithEstimates(n, bloomFalseRate),
		ids:    make(map[string]struct{}),
	}
}

func (v *visitedSet) markIfNew(id string) bool {
	if v.filter.TestString(id) {
		if _, seen := v.ids[id]; seen {
			return false
		}
	}
	v.filter.AddString(id)
	v.ids[id] = struct{}{}
	return true
}

// Registry records which players and matches have been seen during a run.
// Marking is atomic, so it is safe to share between workers.
type Registry struct {
	mu      sync.Mutex
	players *visitedSet
	matches *visitedSet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		players: newVisitedSet(expectedPlayers),
		matches: newVisitedSet(expectedMatches),
	}
}

// MarkPlayerIfNew reports whether puuid was unseen, marking it seen.
func (r *Registry) MarkPlayerIfNew(puuid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players.markIfNew(puuid)
}

// MarkMatchIfNew reports whether matchID was unseen, marking it seen.
func (r *Registry) MarkMatchIfNew(matchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matches.markIfNew(matchID)
}

// Players returns the number of distinct players marked.
func (r *Registry) Players() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players.ids)
}

// Matches returns the number of distinct matches marked.
func (r *Registry) Matches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches.ids)
}

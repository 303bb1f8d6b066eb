package history

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// FirstPlayFilter tracks which identifiers have already been played so
// repeat requests are not double-counted as first plays. The Bloom filter
// answers the common "seen before" case cheaply; the map is authoritative
// and bounded by an LRU over the tracked identifiers.
type FirstPlayFilter struct {
	identifiers       map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	maxTracked        int
	falsePositiveRate float64
}

const defaultMaxTracked = 10000

// NewFirstPlayFilter creates a filter tracking up to maxTracked identifiers
// with the given Bloom false positive rate. A non-positive maxTracked would
// break both the LRU and the uint conversion for the Bloom filter, so it
// falls back to the default capacity.
func NewFirstPlayFilter(maxTracked int, falsePositiveRate float64) *FirstPlayFilter {
	if maxTracked <= 0 {
		maxTracked = defaultMaxTracked
	}
	lruCache, _ := lru.New[string, struct{}](maxTracked)

	return &FirstPlayFilter{
		identifiers:       make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(maxTracked), falsePositiveRate),
		lru:               lruCache,
		maxTracked:        maxTracked,
		falsePositiveRate: falsePositiveRate,
	}
}

// Seen checks whether an identifier has been played before.
func (f *FirstPlayFilter) Seen(identifier string) bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if !f.bloom.TestString(identifier) {
		return false
	}

	_, exists := f.identifiers[identifier]
	return exists
}

// Mark records a play of identifier and reports whether it was the first.
func (f *FirstPlayFilter) Mark(identifier string) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, exists := f.identifiers[identifier]; exists {
		return false
	}

	f.identifiers[identifier] = struct{}{}
	f.bloom.AddString(identifier)
	f.lru.Add(identifier, struct{}{})

	if len(f.identifiers) > f.maxTracked {
		f.evictOldest()
	}
	return true
}

// Load replaces the tracked set with the provided identifiers, typically
// read back from the history store at startup.
func (f *FirstPlayFilter) Load(identifiers []string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.identifiers = make(map[string]struct{})
	f.bloom = bloom.NewWithEstimates(uint(f.maxTracked), f.falsePositiveRate)
	f.lru.Purge()

	for _, id := range identifiers {
		if id == "" {
			continue
		}
		f.identifiers[id] = struct{}{}
		f.bloom.AddString(id)
		f.lru.Add(id, struct{}{})
	}

	for len(f.identifiers) > f.maxTracked {
		f.evictOldest()
	}
}

// Size returns the number of identifiers currently tracked.
func (f *FirstPlayFilter) Size() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return len(f.identifiers)
}

func (f *FirstPlayFilter) evictOldest() {
	oldest, _, ok := f.lru.GetOldest()
	if !ok {
		return
	}
	delete(f.identifiers, oldest)
	f.lru.Remove(oldest)
	// The Bloom filter cannot forget the evicted identifier; the map stays
	// authoritative so that only costs a false positive on the fast path.
}

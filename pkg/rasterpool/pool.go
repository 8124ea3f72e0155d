package rasterpool

import (
	"sync"
	"sync/atomic"

	"github.com/relief-labs/rasterpool/pkg/codec"
)

// slot is one fixed array element of the Dataset Pool: a cached hash tag for
// fast rejection during scans, a monotonic last-touched timestamp used to
// pick an eviction victim, the Key it currently holds, and the Handle
// serving that key. A zero-value slot (tag 0, handle nil) is empty.
//
// tag and ts are atomic so a read-locked scan (looking for a matching tag,
// or picking a low-timestamp victim) never races with the timestamp bump a
// concurrent reader does on every hit; key and handle are only ever written
// under the pool's write lock, so reading them under the read lock is safe.
type slot struct {
	tag    atomic.Uint64
	ts     atomic.Uint64
	key    Key
	handle *Handle
}

func (s *slot) empty() bool { return s.handle == nil }

// Pool is the flat array-backed, multi-copy LRU Dataset Pool (spec.md §3,
// §4.3). A single logical [Key] may occupy more than one slot at once
// ("copies"); the Dispatch Engine grows copies under contention instead of
// making callers queue on one Handle's mutex.
//
// cacheLock is a [sync.RWMutex]: scans for an existing copy and
// use-count bumps take the read side, so many goroutines can search the
// pool concurrently; inserting a new copy or evicting one takes the write
// side. A caller asking for a "soft" copy (willing to accept whatever is
// already resident rather than force a new one in) uses TryLock on the
// write side, so a busy pool degrades to "use what's there" instead of
// stalling.
type Pool struct {
	cacheLock sync.RWMutex
	slots     []slot
	size      int

	provider codec.Provider
	errCh    *ErrorChannel
	clock    atomic.Uint64
}

// NewPool allocates a pool with a fixed number of slots.
func NewPool(numSlots int, provider codec.Provider, errCh *ErrorChannel) *Pool {
	if numSlots < 1 {
		numSlots = 1
	}

	return &Pool{
		slots:    make([]slot, numSlots),
		provider: provider,
		errCh:    errCh,
	}
}

// hashKey is an FNV-1a 64-bit hash of a Key's canonical string form, used
// only as a cheap pre-filter tag on each slot so a scan can skip a full Key
// comparison on a clear miss.
func hashKey(k Key) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	h := uint64(offset64)

	for i := 0; i < len(k.URI); i++ {
		h ^= uint64(k.URI[i])
		h *= prime64
	}

	for _, opt := range k.Options {
		h ^= 0xff
		h *= prime64

		for i := 0; i < len(opt); i++ {
			h ^= uint64(opt[i])
			h *= prime64
		}
	}

	return h
}

// tick returns a fresh, strictly increasing timestamp for slot touch/insert
// bookkeeping. A logical clock rather than wall time, so eviction ordering
// is exact even under coarse OS timer resolution.
func (p *Pool) tick() uint64 { return p.clock.Add(1) }

// countCopies returns how many slots currently hold key.
func (p *Pool) countCopies(key Key) int {
	tag := hashKey(key)
	n := 0

	for i := range p.slots {
		s := &p.slots[i]
		if !s.empty() && s.tag.Load() == tag && s.key.equal(key) {
			n++
		}
	}

	return n
}

// acquireAllLocked scans every slot holding key, bumping use count and
// timestamp on each, appending to result. The cacheLock must already be
// held, for reading or writing.
func (p *Pool) acquireAllLocked(key Key, result []*Handle) []*Handle {
	tag := hashKey(key)

	for i := range p.slots {
		s := &p.slots[i]
		if s.empty() || s.tag.Load() != tag || !s.key.equal(key) {
			continue
		}

		s.handle.inc()
		s.ts.Store(p.tick())

		result = append(result, s.handle)
	}

	return result
}

// Get returns every resident copy of key, use-counted and pinned, growing
// the pool toward a target copy count (spec.md §4.3):
//
//   - copies > 0: grow *hard* — block on the write lock and keep inserting
//     new copies until the target is met or no slot is evictable.
//   - copies < 0: grow *softly* — use the write lock only via TryLock;
//     settle for however many copies (possibly zero) are already resident
//     if the lock is contended.
//   - copies == 0: treated as copies = 1, hard.
//
// Each handle in the returned slice has been inc()'d exactly once; the
// caller must dec() every one of them exactly once (via [Pool.Release]),
// regardless of outcome.
func (p *Pool) Get(key Key, copies int) ([]*Handle, error) {
	hard := true
	target := copies

	switch {
	case copies == 0:
		target = 1
	case copies < 0:
		hard = false
		target = -copies
	}

	p.cacheLock.RLock()
	result := p.acquireAllLocked(key, nil)
	p.cacheLock.RUnlock()

	if len(result) >= target {
		return result, nil
	}

	if hard {
		p.cacheLock.Lock()
	} else if !p.cacheLock.TryLock() {
		return result, nil
	}
	defer p.cacheLock.Unlock()

	// result already holds every copy resident at the RLock scan, each
	// inc()'d once; grow it in place rather than re-scanning (which would
	// inc() those same handles a second time).
	for len(result) < target {
		handle, err := openHandle(key, p.provider, p.errCh)
		if err != nil {
			if len(result) > 0 {
				return result, nil
			}

			return nil, err
		}

		handle.inc()

		if !p.insertLocked(key, handle) {
			// No evictable slot: every copy currently resident is pinned in
			// use. Stop growing rather than block — the caller gets
			// however many copies it already has.
			handle.dec()
			handle.close()

			break
		}

		result = append(result, handle)
	}

	return result, nil
}

// insertLocked places handle into an empty slot if one exists; otherwise it
// selects the single best eviction victim — the smallest-timestamp slot
// whose handle can be locked for deletion — in one pass over the array,
// unlocking any previously-best candidate as soon as a better one is also
// found lockable (spec.md §4.3). Must be called with cacheLock held for
// writing. Returns false, leaving handle unplaced, if no slot is
// evictable.
func (p *Pool) insertLocked(key Key, handle *Handle) bool {
	for i := range p.slots {
		s := &p.slots[i]
		if s.empty() {
			p.placeLocked(s, key, handle)
			p.size++

			return true
		}
	}

	var victim *slot

	for i := range p.slots {
		s := &p.slots[i]
		if !s.handle.lockForDeletion() {
			continue
		}

		if victim != nil && s.ts.Load() >= victim.ts.Load() {
			s.handle.mu.Unlock()
			continue
		}

		if victim != nil {
			victim.handle.mu.Unlock()
		}

		victim = s
	}

	if victim == nil {
		return false
	}

	evicted := victim.handle
	evicted.close()

	p.placeLocked(victim, key, handle)

	evicted.mu.Unlock()

	return true
}

func (p *Pool) placeLocked(s *slot, key Key, handle *Handle) {
	s.tag.Store(hashKey(key))
	s.key = key
	s.handle = handle
	s.ts.Store(p.tick())
}

// Release returns one use of h to the pool.
func (p *Pool) Release(h *Handle) {
	if h != nil {
		h.dec()
	}
}

// Contains reports whether any slot currently holds key.
func (p *Pool) Contains(key Key) bool {
	p.cacheLock.RLock()
	defer p.cacheLock.RUnlock()

	return p.countCopies(key) > 0
}

// Count returns how many slots currently hold key.
func (p *Pool) Count(key Key) int {
	p.cacheLock.RLock()
	defer p.cacheLock.RUnlock()

	return p.countCopies(key)
}

// Clear evicts every slot, closing each handle whose use count is zero. A
// handle still in use is skipped and left resident; Clear does not block
// waiting for in-flight callers to finish.
func (p *Pool) Clear() {
	p.cacheLock.Lock()
	defer p.cacheLock.Unlock()

	for i := range p.slots {
		s := &p.slots[i]
		if s.empty() {
			continue
		}

		if !s.handle.lockForDeletion() {
			continue
		}

		s.handle.close()
		s.handle.mu.Unlock()

		s.tag.Store(0)
		s.key = Key{}
		s.handle = nil
		s.ts.Store(0)
		p.size--
	}
}

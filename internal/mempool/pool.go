package mempool

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

var (
	// ErrDuplicateHash mirrors seqtypes.ErrDuplicateHash for the mempool's
	// own public contract (spec section 4.3: insert -> DuplicateHash).
	ErrDuplicateHash = seqtypes.ErrDuplicateHash
	// ErrFull is returned when insert would exceed max_size (spec section
	// 4.3); it never mutates the pool.
	ErrFull = errors.New("mempool: full")
)

var (
	insertedCounter = metrics.NewRegisteredCounter("mempool/inserted", nil)
	duplicateCounter = metrics.NewRegisteredCounter("mempool/duplicate", nil)
	fullCounter      = metrics.NewRegisteredCounter("mempool/full", nil)
	poolSizeGauge    = metrics.NewRegisteredGauge("mempool/size", nil)
)

// Pool is the indexed priority mempool described in spec section 4.3.
// A single mutex guards the heap and both indexes: select requires
// writer-style exclusivity and must not run concurrently with itself,
// while insert/remove/contains/by_sender must be linearizable against it
// (spec section 5) — a single lock satisfies both requirements directly,
// the same way the teacher's VectorFeePoolDummy guards txs/txsByAddress
// with one sync.RWMutex.
type Pool struct {
	mu       sync.Mutex
	maxSize  int
	byHash   map[common.Hash]*Entry
	bySender map[common.Address][]*Entry // kept sorted by nonce ascending
	queue    entryHeap
	pending  map[common.Hash]struct{} // hashes reserved (duplicate+capacity checked) while their WAL write is in flight

	seq atomic.Uint64

	wal *WAL
}

// New constructs an empty pool bounded at maxSize live entries, backed by
// the given WAL handle (may be nil, e.g. for tests).
func New(maxSize int, wal *WAL) *Pool {
	p := &Pool{
		maxSize:  maxSize,
		byHash:   make(map[common.Hash]*Entry),
		bySender: make(map[common.Address][]*Entry),
		pending:  make(map[common.Hash]struct{}),
		wal:      wal,
	}
	heap.Init(&p.queue)
	return p
}

// Restore replays the WAL at path into a fresh pool, re-validating each
// record with revalidate before admitting it (spec section 4.3 and 8:
// "after restart, the mempool set equals the set of admitted-but-not-
// included transactions present in the WAL at shutdown, modulo
// re-validation failures which are logged"). revalidate parses the raw
// bytes and returns the transaction and its recovered sender, or an error
// to drop the record; priority is taken from the transaction's gas price.
func Restore(path string, maxSize int, wal *WAL, revalidate func(rawTx []byte) (*seqtypes.Transaction, common.Address, error)) (*Pool, error) {
	p := New(maxSize, wal)
	var maxSeq uint64
	err := Replay(path, func(rawTx []byte, predicate *seqtypes.ConditionalPredicate, sequence uint64) error {
		tx, sender, err := revalidate(rawTx)
		if err != nil {
			return err
		}
		if sequence > maxSeq {
			maxSeq = sequence
		}
		entry := &Entry{
			Tx:        tx,
			Hash:      tx.Hash(),
			Sender:    sender,
			Priority:  uint256.MustFromBig(tx.GasPrice()),
			Sequence:  sequence,
			Predicate: predicate,
		}
		return p.admitLocked(entry, false)
	})
	if err != nil {
		return nil, err
	}
	p.seq.Store(maxSeq + 1)
	poolSizeGauge.Update(int64(len(p.byHash)))
	return p, nil
}

// InsertResult is the outcome of Insert, per spec section 4.3's public
// contract: insert(tx, predicate?) -> Inserted | DuplicateHash | Full.
type InsertResult int

const (
	Inserted InsertResult = iota
	DuplicateHash
	Full
)

// Insert admits tx into the pool under the given optional conditional
// predicate. A successful insert is durably WAL-appended before becoming
// visible to readers (spec section 4.3); this call must not be canceled
// once the WAL write begins (spec section 5).
//
// The duplicate-hash and capacity checks reserve the hash under p.mu
// before the WAL write begins, and hold that reservation until the entry
// is admitted or the attempt is abandoned. Without this, two concurrent
// inserts racing the last free slot could both pass an initial check,
// both durably WAL-append, and then have the loser's WAL record resurrect
// a transaction on restart that its own Insert call had already reported
// as rejected.
func (p *Pool) Insert(tx *seqtypes.Transaction, predicate *seqtypes.ConditionalPredicate) (InsertResult, error) {
	hash := tx.Hash()

	p.mu.Lock()
	if _, exists := p.byHash[hash]; exists {
		p.mu.Unlock()
		duplicateCounter.Inc(1)
		return DuplicateHash, nil
	}
	if _, exists := p.pending[hash]; exists {
		p.mu.Unlock()
		duplicateCounter.Inc(1)
		return DuplicateHash, nil
	}
	if len(p.byHash)+len(p.pending) >= p.maxSize {
		size := len(p.byHash) + len(p.pending)
		p.mu.Unlock()
		fullCounter.Inc(1)
		logFullWarning(size, p.maxSize)
		return Full, nil
	}
	p.pending[hash] = struct{}{}
	p.mu.Unlock()

	releasePending := func() {
		p.mu.Lock()
		delete(p.pending, hash)
		p.mu.Unlock()
	}

	sender, err := tx.Sender()
	if err != nil {
		releasePending()
		return 0, fmt.Errorf("mempool: recover sender: %w", err)
	}

	sequence := p.seq.Add(1) - 1

	if p.wal != nil {
		raw, err := seqtypes.Serialize(tx)
		if err != nil {
			releasePending()
			return 0, fmt.Errorf("mempool: serialize for wal: %w", err)
		}
		if err := p.wal.Append(raw, predicate, sequence); err != nil {
			releasePending()
			return 0, fmt.Errorf("mempool: wal append: %w", err)
		}
	}

	entry := &Entry{
		Tx:        tx,
		Hash:      hash,
		Sender:    sender,
		Priority:  uint256.MustFromBig(tx.GasPrice()),
		Sequence:  sequence,
		Predicate: predicate,
	}

	p.mu.Lock()
	delete(p.pending, hash)
	// The reservation above already accounted for capacity and duplicate
	// hashes, so this commit cannot fail.
	_ = p.admitLocked(entry, false)
	size := len(p.byHash)
	p.mu.Unlock()

	insertedCounter.Inc(1)
	poolSizeGauge.Update(int64(size))
	return Inserted, nil
}

// admitLocked adds entry to all indexes; it must be called with p.mu
// held. If enforceCap is true and the pool is at capacity it returns
// ErrFull without mutating state; Restore passes false since WAL replay
// must not silently drop entries that were admitted before a capacity
// change.
func (p *Pool) admitLocked(entry *Entry, enforceCap bool) error {
	if _, exists := p.byHash[entry.Hash]; exists {
		return ErrDuplicateHash
	}
	if enforceCap && len(p.byHash) >= p.maxSize {
		return ErrFull
	}
	p.byHash[entry.Hash] = entry
	heap.Push(&p.queue, entry)

	txs := p.bySender[entry.Sender]
	idx := sort.Search(len(txs), func(i int) bool { return txs[i].Tx.Nonce() >= entry.Tx.Nonce() })
	txs = append(txs, nil)
	copy(txs[idx+1:], txs[idx:])
	txs[idx] = entry
	p.bySender[entry.Sender] = txs

	return nil
}

// Remove deletes the entry for hash, if present, returning it.
func (p *Pool) Remove(hash common.Hash) (*Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	p.removeLocked(entry)
	poolSizeGauge.Update(int64(len(p.byHash)))
	return entry, true
}

func (p *Pool) removeLocked(entry *Entry) {
	delete(p.byHash, entry.Hash)

	txs := p.bySender[entry.Sender]
	for i, e := range txs {
		if e.Hash == entry.Hash {
			txs = append(txs[:i], txs[i+1:]...)
			break
		}
	}
	if len(txs) == 0 {
		delete(p.bySender, entry.Sender)
	} else {
		p.bySender[entry.Sender] = txs
	}

	for i, e := range p.queue {
		if e.Hash == entry.Hash {
			heap.Remove(&p.queue, i)
			break
		}
	}
}

// Contains reports whether hash is currently held by the pool.
func (p *Pool) Contains(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[hash]
	return ok
}

// BySender returns the sender's queued entries, ordered by nonce
// ascending.
func (p *Pool) BySender(addr common.Address) []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	txs := p.bySender[addr]
	out := make([]*Entry, len(txs))
	copy(out, txs)
	return out
}

// Len returns the current number of live entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// Select returns entries ordered by priority descending, received-at
// ascending, filtered by the supplied conditional predicate evaluation
// point and constrained by a cumulative gas budget and count cap (spec
// section 4.3). It is non-destructive: selected entries remain in the
// pool. Per-sender nonces are only admitted contiguously starting from
// each sender's lowest queued nonce (spec section 4.4) — a transaction
// whose predecessor nonce is still pending is skipped and left in place.
func (p *Pool) Select(gasBudget uint64, maxCount int, currentBlock, currentTs uint64) []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Copy the queue into a work buffer (spec section 4.3's "Selection
	// algorithm") and sort it into priority order; the heap is not modified.
	work := make([]*Entry, len(p.queue))
	copy(work, p.queue)
	sort.Slice(work, func(i, j int) bool { return work[i].less(work[j]) })

	nextNonce := make(map[common.Address]uint64, len(p.bySender))
	for addr, txs := range p.bySender {
		if len(txs) > 0 {
			nextNonce[addr] = txs[0].Tx.Nonce()
		}
	}

	selected := make([]*Entry, 0, maxCount)
	remainingGas := gasBudget

	for _, entry := range work {
		if len(selected) >= maxCount {
			break
		}
		if entry.Tx.Nonce() != nextNonce[entry.Sender] {
			continue // gap: predecessor nonce not yet selected this round
		}
		if entry.Predicate != nil && !entry.Predicate.Satisfied(currentBlock, currentTs) {
			continue // left in place; may become eligible on a later tick
		}
		gas := entry.Tx.Gas()
		if gas > remainingGas {
			continue // doesn't fit this round; a lower-priority, smaller tx might
		}

		selected = append(selected, entry)
		remainingGas -= gas
		nextNonce[entry.Sender] = entry.Tx.Nonce() + 1
	}

	return selected
}

// Size reports the pool's live entry count and exposes it for metrics and
// operator diagnostics, matching the teacher's onIdle-style periodic log
// (NewVectorFeePoolDummy does the analogous thing via Stats()).
func (p *Pool) Size() int { return p.Len() }

func logFullWarning(current, max int) {
	log.Warn("mempool at capacity", "size", current, "maxSize", max)
}

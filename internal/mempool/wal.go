package mempool

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/blockblaz/rollup-sequencer/internal/codec"
	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// walRecord is the on-disk shape of one WAL entry: the raw transaction
// bytes (so replay re-runs the exact same parse path admission used),
// its conditional predicate, and the admission sequence number so replay
// reconstructs received-at ordering exactly.
type walRecord struct {
	RawTx     []byte
	Predicate *seqtypes.ConditionalPredicate `rlp:"nil"`
	Sequence  uint64
}

// WALSyncPolicy controls fsync cadence, per spec section 5 ("fsync
// cadence is configurable (per-record or batched within a bounded
// interval)").
type WALSyncPolicy struct {
	PerRecord bool
	Interval  time.Duration
}

// DefaultWALSyncPolicy fsyncs every record — the safest default, at the
// cost of durability throughput.
func DefaultWALSyncPolicy() WALSyncPolicy {
	return WALSyncPolicy{PerRecord: true}
}

// WAL is the append-only, length-prefixed write-ahead log backing the
// mempool (spec sections 4.3 and 6): "a write-ahead log file (append-only,
// length-prefixed records; each record is a serialized mempool entry)".
type WAL struct {
	mu     sync.Mutex
	file   *os.File
	policy WALSyncPolicy

	lastSync   time.Time
	pendingSync bool
}

// OpenWAL opens (creating if absent) the WAL file at path for appending.
func OpenWAL(path string, policy WALSyncPolicy) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("mempool: open wal: %w", err)
	}
	return &WAL{file: f, policy: policy, lastSync: time.Now()}, nil
}

// Append durably writes one record before insert is considered visible
// to readers (spec section 4.3: "every successful insert is durably
// appended to an append-only log before the insert is visible to
// readers"). Admission calls are not cancellable once this write has
// begun (spec section 5) — callers must not pass a cancellable context
// into this path.
func (w *WAL) Append(rawTx []byte, predicate *seqtypes.ConditionalPredicate, sequence uint64) error {
	rec := walRecord{RawTx: rawTx, Predicate: predicate, Sequence: sequence}
	enc, err := codec.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("mempool: encode wal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(enc)))
	if _, err := w.file.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("mempool: write wal length prefix: %w", err)
	}
	if _, err := w.file.Write(enc); err != nil {
		return fmt.Errorf("mempool: write wal record: %w", err)
	}

	return w.maybeSync()
}

func (w *WAL) maybeSync() error {
	if w.policy.PerRecord {
		return w.file.Sync()
	}
	if time.Since(w.lastSync) >= w.policy.Interval {
		w.lastSync = time.Now()
		w.pendingSync = false
		return w.file.Sync()
	}
	w.pendingSync = true
	return nil
}

// Flush forces a sync regardless of the batched-interval policy; callers
// should invoke this on clean shutdown.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pendingSync && !w.policy.PerRecord {
		return nil
	}
	w.pendingSync = false
	w.lastSync = time.Now()
	return w.file.Sync()
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	_ = w.Flush()
	return w.file.Close()
}

// Replay reads every record in the WAL in order and invokes fn for each.
// WAL entries for which fn returns an error are dropped with a warning
// (spec section 4.3: "WAL entries that fail re-validation are dropped
// with a warning") rather than aborting the whole replay.
func Replay(path string, fn func(rawTx []byte, predicate *seqtypes.ConditionalPredicate, sequence uint64) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("mempool: open wal for replay: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	count := 0
	for {
		var lenPrefix [4]byte
		if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
			if err == io.EOF {
				break
			}
			log.Warn("mempool: truncated wal record length, stopping replay", "recordsReplayed", count, "err", err)
			break
		}
		size := binary.BigEndian.Uint32(lenPrefix[:])
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			log.Warn("mempool: truncated wal record body, stopping replay", "recordsReplayed", count, "err", err)
			break
		}

		var rec walRecord
		if err := codec.DecodeBytes(buf, &rec); err != nil {
			log.Warn("mempool: dropping corrupt wal record", "err", err)
			continue
		}
		if err := fn(rec.RawTx, rec.Predicate, rec.Sequence); err != nil {
			log.Warn("mempool: dropping wal record failing re-validation", "err", err)
			continue
		}
		count++
	}
	log.Info("mempool: wal replay complete", "records", count)
	return nil
}

package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"lsmkv/pkg/clock"
	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/iterator"
	"lsmkv/pkg/memtable"
	"lsmkv/pkg/metrics"
	"lsmkv/pkg/types"
)

type iTimeProvider interface {
	Now() time.Time
}

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithTimeProvider replaces the wall clock used to stamp writes.
func WithTimeProvider(tp iTimeProvider) Option {
	return func(s *Store) {
		s.tp = tp
	}
}

// Store is an LSM key-value engine over one directory. Writes land in the
// memtable; once it reaches the flush threshold it is written out
// synchronously as a new generation. Reads merge the memtable with every
// generation.
type Store struct {
	dir       string
	threshold int64

	log     *slog.Logger
	metrics metrics.Collector
	tp      iTimeProvider
	clock   *clock.AtomicClock

	// writeMu serializes mutations and flushes.
	writeMu sync.Mutex

	// mu guards the fields below. Readers hold it only while snapshotting.
	mu      sync.RWMutex
	mt      *memtable.Memtable
	gens    *generations
	nextGen types.Generation
	closed  bool
}

// Open opens or creates the store in dir. Every existing "<n>.dat" file is
// opened as generation n; files that fail to parse are skipped.
func Open(dir string, flushThreshold int64, opts ...Option) (*Store, error) {
	if flushThreshold <= 0 {
		return nil, fmt.Errorf("%w: flush threshold must be positive, got %d", dberrors.ErrInvalidArgument, flushThreshold)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, storageErr(err)
	}

	s := &Store{
		dir:       dir,
		threshold: flushThreshold,
		log:       slog.Default(),
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("dir", dir)
	s.clock = clock.NewAtomic(s.tp)

	gens, next, maxTS, err := discover(dir, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tables: %w", err)
	}
	s.gens = gens
	s.nextGen = next
	// new writes must outrank everything on disk even if the wall clock went back
	s.clock.Set(maxTS)
	s.mt = memtable.New(s.clock)

	s.log.Info("store opened", "generations", gens.len(), "next_generation", next, "max_timestamp", maxTS)
	s.reportGauges()

	return s, nil
}

// Upsert stores value under key.
func (s *Store) Upsert(key types.Key, value types.Value) error {
	err := s.mutate(func(mt *memtable.Memtable) {
		mt.Upsert(key, value)
	})
	if err == nil {
		s.metrics.IncCounter("lsmdb_upserts_total", nil, 1)
	}
	return err
}

// Remove deletes key. Older versions on disk are shadowed, not erased.
func (s *Store) Remove(key types.Key) error {
	err := s.mutate(func(mt *memtable.Memtable) {
		mt.Remove(key)
	})
	if err == nil {
		s.metrics.IncCounter("lsmdb_removes_total", nil, 1)
	}
	return err
}

func (s *Store) mutate(apply func(*memtable.Memtable)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	mt, closed := s.mt, s.closed
	s.mu.RUnlock()
	if closed {
		return dberrors.ErrClosed
	}

	apply(mt)
	defer s.reportGauges()

	if mt.ApproximateSize() >= s.threshold {
		return s.flush()
	}
	return nil
}

// Get returns the freshest live value for key. A missing or deleted key
// yields found == false and no error.
func (s *Store) Get(key types.Key) (types.Value, bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false, dberrors.ErrClosed
	}
	mt, tables := s.mt, s.gens.newestFirst()
	s.mu.RUnlock()

	if v, ok := mt.Get(key); ok {
		if v.Tombstone {
			return nil, false, nil
		}
		return bytes.Clone(v.Data), true, nil
	}

	var (
		best  []byte
		bestT types.Timestamp
		found bool
		live  bool
	)
	for _, t := range tables {
		if !t.MayContain(key) {
			continue
		}
		v, ok, err := t.Get(key)
		if err != nil {
			return nil, false, err
		}
		if ok && (!found || v.Timestamp > bestT) {
			best, bestT, found, live = v.Data, v.Timestamp, true, !v.Tombstone
		}
	}
	if !found || !live {
		return nil, false, nil
	}

	return bytes.Clone(best), true, nil
}

// RangeFrom returns the live records with key >= from in ascending key
// order. The iterator reads a snapshot of the memtable and generations taken
// at call time and must be closed.
func (s *Store) RangeFrom(from types.Key) (*RangeIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dberrors.ErrClosed
	}

	tables := s.gens.newestFirst()
	sources := make([]iterator.CellIterator, 0, len(tables)+1)
	sources = append(sources, s.mt.IteratorFrom(from))
	for _, t := range tables {
		sources = append(sources, t.IteratorFrom(from))
	}

	return newRangeIterator(sources), nil
}

// Flush writes the memtable out as a new generation. It is a no-op when the
// memtable is empty.
func (s *Store) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return dberrors.ErrClosed
	}

	defer s.reportGauges()
	return s.flush()
}

// Close flushes a non-empty memtable and releases every table. If the final
// flush fails the store stays open so Close can be retried.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil
	}

	if err := s.flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}

	s.mu.Lock()
	s.closed = true
	gens := s.gens
	s.gens = &generations{}
	s.mu.Unlock()

	if err := gens.closeAll(); err != nil {
		s.log.Warn("failed to close tables", "error", err)
		return err
	}

	s.log.Info("store closed")
	return nil
}

type Stats struct {
	Generations    int
	NextGeneration types.Generation
	MemtableKeys   int
	MemtableBytes  int64
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Generations:    s.gens.len(),
		NextGeneration: s.nextGen,
		MemtableKeys:   s.mt.Len(),
		MemtableBytes:  s.mt.ApproximateSize(),
	}
}

func (s *Store) reportGauges() {
	st := s.Stats()
	s.metrics.SetGauge("lsmdb_memtable_bytes", nil, float64(st.MemtableBytes))
	s.metrics.SetGauge("lsmdb_memtable_keys", nil, float64(st.MemtableKeys))
	s.metrics.SetGauge("lsmdb_generations", nil, float64(st.Generations))
}

func storageErr(err error) error {
	if errors.Is(err, dberrors.ErrStorageIO) {
		return err
	}
	return fmt.Errorf("%w: %w", dberrors.ErrStorageIO, err)
}

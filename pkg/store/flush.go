package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lsmkv/pkg/memtable"
	"lsmkv/pkg/sstable"
)

// flush serializes the memtable to "<gen>.tmp", renames it to "<gen>.dat",
// opens it and swaps in an empty memtable. Any failure before the swap leaves
// the memtable and the generation set untouched. Callers hold writeMu.
func (s *Store) flush() error {
	s.mu.RLock()
	mt, gen := s.mt, s.nextGen
	s.mu.RUnlock()

	count := mt.Len()
	if count == 0 {
		return nil
	}

	var (
		start = time.Now()
		tmp   = filepath.Join(s.dir, tempName(gen))
		dst   = filepath.Join(s.dir, tableName(gen))
	)

	it := mt.IteratorFrom(nil)
	err := sstable.WriteFile(tmp, it, count)
	_ = it.Close()
	if err != nil {
		s.removeTemp(tmp)
		return fmt.Errorf("failed to write generation %d: %w", gen, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		s.removeTemp(tmp)
		return fmt.Errorf("failed to publish generation %d: %w", gen, storageErr(err))
	}
	if err := syncDir(s.dir); err != nil {
		s.log.Warn("failed to sync storage directory", "error", err)
	}

	table, err := sstable.Open(dst)
	if err != nil {
		return fmt.Errorf("failed to open generation %d: %w", gen, err)
	}

	s.mu.Lock()
	s.gens.add(gen, table)
	s.nextGen = gen + 1
	s.mt = memtable.New(s.clock)
	s.mu.Unlock()

	elapsed := time.Since(start)
	s.metrics.IncCounter("lsmdb_flushes_total", nil, 1)
	s.metrics.ObserveHistogram("lsmdb_flush_seconds", nil, elapsed.Seconds())
	s.log.Info("memtable flushed",
		"generation", gen,
		"cells", count,
		"bytes", mt.ApproximateSize(),
		"duration", elapsed,
	)

	return nil
}

func (s *Store) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove temp table", "path", path, "error", err)
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}

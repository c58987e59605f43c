package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/btree"

	"lsmkv/pkg/sstable"
	"lsmkv/pkg/types"
)

const (
	tableSuffix = ".dat"
	tempSuffix  = ".tmp"
)

func tableName(gen types.Generation) string {
	return strconv.FormatUint(uint64(gen), 10) + tableSuffix
}

func tempName(gen types.Generation) string {
	return strconv.FormatUint(uint64(gen), 10) + tempSuffix
}

// parseGeneration extracts the generation from "<n><suffix>".
func parseGeneration(name, suffix string) (types.Generation, bool) {
	stem, ok := strings.CutSuffix(name, suffix)
	if !ok || stem == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return types.Generation(n), true
}

// generations maps generation to its opened table. Not safe for concurrent
// use; the store guards it.
type generations struct {
	tables btree.Map[types.Generation, *sstable.Table]
}

func (g *generations) add(gen types.Generation, t *sstable.Table) {
	g.tables.Set(gen, t)
}

func (g *generations) get(gen types.Generation) (*sstable.Table, bool) {
	return g.tables.Get(gen)
}

func (g *generations) len() int {
	return g.tables.Len()
}

// newestFirst lists the tables from the highest generation down.
func (g *generations) newestFirst() []*sstable.Table {
	out := make([]*sstable.Table, 0, g.tables.Len())
	g.tables.Reverse(func(_ types.Generation, t *sstable.Table) bool {
		out = append(out, t)
		return true
	})
	return out
}

func (g *generations) closeAll() error {
	var errs []error
	g.tables.Scan(func(gen types.Generation, t *sstable.Table) bool {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close generation %d: %w", gen, err))
		}
		return true
	})
	g.tables = btree.Map[types.Generation, *sstable.Table]{}
	return errors.Join(errs...)
}

// discover opens every table file in dir and returns them with the next free
// generation and the highest timestamp on disk. Files that do not parse are
// skipped and reported; their generation is still counted so a later flush
// never renames over them. Leftover temp files from an interrupted flush are
// removed. When two names map to one generation ("1.dat", "01.dat") the
// canonical name wins.
func discover(dir string, log *slog.Logger) (*generations, types.Generation, types.Timestamp, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, 0, storageErr(err)
	}

	var (
		gens  generations
		next  types.Generation
		maxTS types.Timestamp
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		if _, ok := parseGeneration(name, tempSuffix); ok {
			if err := os.Remove(path); err != nil {
				log.Warn("failed to remove stale temp table", "path", path, "error", err)
			} else {
				log.Info("removed stale temp table", "path", path)
			}
			continue
		}

		if !strings.HasSuffix(name, tableSuffix) {
			continue
		}
		gen, ok := parseGeneration(name, tableSuffix)
		if !ok {
			log.Warn("skipping table with unexpected name", "path", path)
			continue
		}
		if gen >= next {
			next = gen + 1
		}

		table, err := sstable.Open(path)
		if err != nil {
			log.Warn("skipping unreadable table", "path", path, "error", err)
			continue
		}
		maxTS = max(maxTS, table.MaxTimestamp())

		if prev, ok := gens.get(gen); ok {
			keep, drop := prev, table
			if name == tableName(gen) {
				keep, drop = table, prev
			}
			log.Warn("duplicate table generation", "generation", gen, "kept", keep.Path(), "skipped", drop.Path())
			_ = drop.Close()
			table = keep
		}
		gens.add(gen, table)
	}

	return &gens, next, maxTS, nil
}

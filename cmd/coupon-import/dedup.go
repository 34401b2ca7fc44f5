package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// fileIndex is the result of the first pass over one feed.
type fileIndex struct {
	filter *bloom.BloomFilter
	// repeats holds codes that probably occur more than once in this file.
	repeats map[string]struct{}
	codes   uint
}

// findDuplicates returns the positions of every record whose code already
// appeared earlier in the feed set. The earliest record of a code wins.
//
// Pass 1 builds one bloom filter per file. Pass 2 records exact positions
// only for codes that some other filter (or the file's own repeat set) flags,
// so memory stays proportional to the number of suspected duplicates. Bloom
// false positives are dropped because they occur only once.
func findDuplicates(ctx context.Context, files []string, capacity uint, fpr float64) (map[position]string, error) {
	indexes, err := indexFiles(ctx, files, capacity, fpr)
	if err != nil {
		return nil, errors.Wrap(err, "index files")
	}

	var (
		mu          sync.Mutex
		occurrences = make(map[string][]position)
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			local := make(map[string][]position)
			err := scanFeed(gctx, path, func(line int, rec []string) error {
				code := normalizeCode(rec[colCode])
				if code == "" || !suspect(indexes, i, code) {
					return nil
				}
				local[code] = append(local[code], position{file: i, line: line})
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "pass 2 on %s", path)
			}

			mu.Lock()
			defer mu.Unlock()
			for code, pos := range local {
				occurrences[code] = append(occurrences[code], pos...)
			}
			slog.Info("pass 2 complete", slog.String("file", path), slog.Int("suspects", len(local)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dups := make(map[position]string)
	for code, pos := range occurrences {
		if len(pos) < 2 {
			continue
		}
		first := pos[0]
		for _, p := range pos[1:] {
			if p.before(first) {
				first = p
			}
		}
		for _, p := range pos {
			if p != first {
				dups[p] = code
			}
		}
	}
	return dups, nil
}

// suspect reports whether code from file i may occur elsewhere.
func suspect(indexes []fileIndex, i int, code string) bool {
	if _, ok := indexes[i].repeats[code]; ok {
		return true
	}
	for j, idx := range indexes {
		if j != i && idx.filter.TestString(code) {
			return true
		}
	}
	return false
}

func indexFiles(ctx context.Context, files []string, capacity uint, fpr float64) ([]fileIndex, error) {
	indexes := make([]fileIndex, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			idx := fileIndex{
				filter:  bloom.NewWithEstimates(capacity, fpr),
				repeats: make(map[string]struct{}),
			}
			err := scanFeed(ctx, path, func(_ int, rec []string) error {
				code := normalizeCode(rec[colCode])
				if code == "" {
					return nil
				}
				if idx.filter.TestAndAddString(code) {
					idx.repeats[code] = struct{}{}
				}
				idx.codes++
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "pass 1 on %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("codes", uint64(idx.codes)))
			indexes[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return indexes, nil
}

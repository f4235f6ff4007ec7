// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// BadgerDB key prefixes for file entries.
const (
	keyPrefixData = "depviz:file:data:"
	keyPrefixMeta = "depviz:file:meta:"
)

// EntryMeta describes one stored file graph.
type EntryMeta struct {
	Path           string `json:"path"`
	GraphHash      string `json:"graph_hash"`
	NodeCount      int    `json:"node_count"`
	EdgeCount      int    `json:"edge_count"`
	CompressedSize int64  `json:"compressed_size"`
	StoredAtMilli  int64  `json:"stored_at_milli"`
}

// BadgerConfig configures a BadgerCache.
type BadgerConfig struct {
	// Dir holds the database files. Empty means a temporary directory
	// that is removed on Close. Ignored when InMemory is true.
	Dir string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// Logger receives badger's internal log output. Nil disables it.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerCache is a FileAnalysisCache stored in BadgerDB.
//
// Description:
//
//	Each file graph is stored as gzip-compressed wire JSON next to a small
//	metadata record. Entries survive memory pressure that would evict them
//	from the LRU backend; they do not outlive the process unless Dir is
//	set.
//
// Key Schema:
//
//	depviz:file:data:{path} → gzip(JSON(WireGraph))
//	depviz:file:meta:{path} → JSON(EntryMeta)
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type BadgerCache struct {
	db      *badger.DB
	tempDir string
	count   atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// OpenBadgerCache opens a badger-backed cache.
//
// Outputs:
//   - *BadgerCache: The cache. Caller must call Close.
//   - error: Non-nil if the directory or database cannot be opened.
func OpenBadgerCache(cfg BadgerConfig) (*BadgerCache, error) {
	c := &BadgerCache{}

	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Dir == "":
		dir, err := os.MkdirTemp("", "depviz-cache-")
		if err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		c.tempDir = dir
		opts = badger.DefaultOptions(dir)
	default:
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts = opts.WithSyncWrites(false).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		if c.tempDir != "" {
			_ = os.RemoveAll(c.tempDir)
		}
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	c.db = db

	paths, err := c.Paths()
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.count.Store(int64(len(paths)))
	return c, nil
}

// Get implements FileAnalysisCache.
func (c *BadgerCache) Get(path string) (*graph.CodeGraph, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var compressed []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixData + path))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		recordLookup(context.Background(), BackendBadger, false)
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	recordLookup(context.Background(), BackendBadger, true)

	w, err := decodeWire(compressed)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return graph.FromWire(w)
}

// Put implements FileAnalysisCache.
func (c *BadgerCache) Put(path string, g *graph.CodeGraph) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if g == nil {
		return fmt.Errorf("graph for %s must not be nil", path)
	}

	compressed, err := encodeWire(g.ToWire())
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	meta, err := json.Marshal(EntryMeta{
		Path:           path,
		GraphHash:      g.Hash(),
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		CompressedSize: int64(len(compressed)),
		StoredAtMilli:  time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	var existed bool
	err = c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefixMeta + path))
		switch {
		case err == nil:
			existed = true
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set([]byte(keyPrefixData+path), compressed); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(keyPrefixMeta+path), meta); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s to badger: %w", path, err)
	}
	if !existed {
		c.count.Add(1)
	}
	return nil
}

// Evict implements FileAnalysisCache.
func (c *BadgerCache) Evict(path string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	var existed bool
	err := c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefixMeta + path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		if err := txn.Delete([]byte(keyPrefixData + path)); err != nil {
			return err
		}
		return txn.Delete([]byte(keyPrefixMeta + path))
	})
	if err != nil {
		return fmt.Errorf("evicting %s: %w", path, err)
	}
	if existed {
		c.count.Add(-1)
	}
	return nil
}

// Meta returns the stored metadata for path, or ErrMiss.
func (c *BadgerCache) Meta(path string) (*EntryMeta, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	var meta EntryMeta
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixMeta + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", path, err)
	}
	return &meta, nil
}

// Paths implements FileAnalysisCache.
func (c *BadgerCache) Paths() ([]string, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var paths []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixMeta)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			paths = append(paths, strings.TrimPrefix(string(it.Item().Key()), keyPrefixMeta))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing cached paths: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Len implements FileAnalysisCache.
func (c *BadgerCache) Len() int {
	return int(c.count.Load())
}

// Close closes the database and removes a temporary directory.
func (c *BadgerCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.db != nil {
			err = c.db.Close()
		}
		if c.tempDir != "" {
			if rmErr := os.RemoveAll(c.tempDir); rmErr != nil && err == nil {
				err = rmErr
			}
		}
	})
	return err
}

func encodeWire(w *graph.WireGraph) ([]byte, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWire(compressed []byte) (*graph.WireGraph, error) {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	var w graph.WireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// sessionKeyPrefix namespaces session documents inside the database.
const sessionKeyPrefix = "session/"

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for the session log store.
type Config struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives the database's internal log output.
	// If nil, internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: durable writes and
// periodic value log GC.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to the database's Logger interface.
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

// =============================================================================
// SESSION LOG STORE
// =============================================================================

// Store persists session log documents.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db       *badger.DB
	gcStop   chan struct{}
	gcDone   chan struct{}
	inMemory bool
}

// Open opens the session log store.
//
// Description:
//
//	Opens (and creates if necessary) the database directory, or an
//	in-memory database when cfg.InMemory is set, and starts the GC
//	loop when configured.
//
// Inputs:
//
//	cfg - Store configuration
//
// Outputs:
//
//	*Store - The opened store. Caller must Close.
//	error - Non-nil if the path is missing or the database fails to open
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path required for persistent store", ErrInvalidInput)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	s := &Store{db: db, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Put stores a session document, overwriting any previous record.
//
// Inputs:
//
//	ctx - Context for cancellation
//	sessionID - Unique session identifier
//	doc - JSON-marshalable session document
func (s *Store) Put(ctx context.Context, sessionID string, doc any) error {
	if sessionID == "" || doc == nil {
		return fmt.Errorf("%w: session ID and document required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", sessionID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+sessionID), data)
	})
	if err != nil {
		return fmt.Errorf("storing session %s: %w", sessionID, err)
	}
	return nil
}

// Get loads a session document into out.
//
// Outputs:
//
//	error - ErrNotFound when no record exists for the session
func (s *Store) Get(ctx context.Context, sessionID string, out any) error {
	if sessionID == "" || out == nil {
		return fmt.Errorf("%w: session ID and target required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return nil
}

// List returns all stored session IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(sessionKeyPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a session record. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session ID required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + sessionID))
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Export writes a session's raw JSON document to w.
//
// Outputs:
//
//	error - ErrNotFound when no record exists for the session
func (s *Store) Export(ctx context.Context, sessionID string, w io.Writer) error {
	if sessionID == "" || w == nil {
		return fmt.Errorf("%w: session ID and writer required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			_, werr := w.Write(val)
			return werr
		})
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("exporting session %s: %w", sessionID, err)
	}
	return nil
}

// Close stops GC and closes the database. Safe to call once.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

// gcLoop runs periodic value log garbage collection.
func (s *Store) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing needed collecting.
			if err := s.db.RunValueLogGC(ratio); err != nil && err != badger.ErrNoRewrite {
				slog.Warn("session store GC error", slog.String("error", err.Error()))
			}
		}
	}
}

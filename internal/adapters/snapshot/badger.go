// Package snapshot persists session snapshots in an embedded badger database
// so sessions survive a restart.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/upsetlens/internal/adapters/repository"
	"github.com/okian/upsetlens/pkg/logger"
)

const keyPrefix = "session:"

// BadgerStore stores one JSON snapshot per session.
type BadgerStore struct {
	db     *badger.DB
	logger logger.Logger
}

// badgerLogger adapts logger.Logger to badger.Logger.
type badgerLogger struct {
	l logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// Open opens or creates the database.
func Open(opts ...Option) (*BadgerStore, error) {
	o := options{syncWrites: true}
	for _, opt := range opts {
		opt(&o)
	}

	var bopts badger.Options
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if o.dir == "" {
			return nil, ErrNoPath
		}
		if err := os.MkdirAll(o.dir, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot directory %s: %w", o.dir, err)
		}
		bopts = badger.DefaultOptions(o.dir)
	}
	bopts = bopts.WithSyncWrites(o.syncWrites).WithNumVersionsToKeep(1)
	if o.logger != nil {
		bopts = bopts.WithLogger(badgerLogger{l: o.logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	l := o.logger
	if l == nil {
		l = logger.Nop()
	}
	return &BadgerStore{db: db, logger: l}, nil
}

// Save writes snap under its session id.
func (s *BadgerStore) Save(ctx context.Context, snap repository.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyPrefix+snap.ID), data); err != nil {
			return fmt.Errorf("set snapshot: %w", err)
		}
		return nil
	})
}

// Load reads the snapshot of one session.
func (s *BadgerStore) Load(ctx context.Context, id string) (repository.Snapshot, error) {
	var snap repository.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	return snap, err
}

// Delete removes the snapshot of one session. Deleting a missing snapshot
// is not an error.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyPrefix + id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		return nil
	})
}

// All returns every stored snapshot in key order. Entries that fail to
// decode are skipped and logged.
func (s *BadgerStore) All(ctx context.Context) ([]repository.Snapshot, error) {
	var out []repository.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var snap repository.Snapshot
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			})
			if err != nil {
				s.logger.Warn(ctx, "skipping unreadable snapshot",
					logger.String("key", string(item.Key())),
					logger.Error(err),
				)
				continue
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

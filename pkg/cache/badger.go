package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Badger key layout:
//
//	t\x00{tier}           tier marker
//	e\x00{tier}\x00{key}  entry
var (
	badgerTierPrefix  = []byte("t\x00")
	badgerEntryPrefix = []byte("e\x00")
	badgerMarkerValue = []byte{1}
)

// BadgerConfig holds configuration for an embedded tier store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// DefaultBadgerConfig returns a persistent configuration rooted at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
	}
}

// badgerLogger adapts zerolog to Badger's Logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// BadgerBackend stores tiers in an embedded Badger database.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens a Badger database for tier storage.
func OpenBadger(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logging.NewLogger(logging.ComponentBadger)})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return NewBadgerBackend(db), nil
}

// NewBadgerBackend wraps an already opened database.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	if db == nil {
		panic("badger db cannot be nil")
	}
	return &BadgerBackend{db: db}
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func badgerTierKey(tier string) []byte {
	return append(append([]byte(nil), badgerTierPrefix...), tier...)
}

func badgerEntryTierPrefix(tier string) []byte {
	k := append(append([]byte(nil), badgerEntryPrefix...), tier...)
	return append(k, 0)
}

func badgerEntryKey(tier, key string) []byte {
	return append(badgerEntryTierPrefix(tier), key...)
}

// CreateTier implements Backend.
func (b *BadgerBackend) CreateTier(ctx context.Context, tier string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerTierKey(tier), badgerMarkerValue)
	})
	if err != nil {
		return fmt.Errorf("badger create tier: %w", mapBadgerError(err))
	}
	return nil
}

// TierNames implements Backend. Badger iterates keys in sorted order.
func (b *BadgerBackend) TierNames(ctx context.Context) ([]string, error) {
	var names []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = badgerTierPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(badgerTierPrefix); it.ValidForPrefix(badgerTierPrefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			names = append(names, string(bytes.TrimPrefix(k, badgerTierPrefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list tiers: %w", err)
	}
	return names, nil
}

// HasTier implements Backend.
func (b *BadgerBackend) HasTier(ctx context.Context, tier string) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerTierKey(tier))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has tier: %w", err)
	}
	return found, nil
}

// DeleteTier implements Backend. The marker goes first so the tier reads as
// absent before its entries are dropped.
func (b *BadgerBackend) DeleteTier(ctx context.Context, tier string) (bool, error) {
	existed, err := b.HasTier(ctx, tier)
	if err != nil {
		return false, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerTierKey(tier))
	})
	if err != nil {
		return false, fmt.Errorf("badger delete tier marker: %w", err)
	}

	if err := b.db.DropPrefix(badgerEntryTierPrefix(tier)); err != nil {
		return existed, fmt.Errorf("badger drop tier entries: %w", err)
	}
	return existed, nil
}

// Get implements Backend.
func (b *BadgerBackend) Get(ctx context.Context, tier, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerEntryKey(tier, key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return data, nil
}

// PutBatch implements Backend. All entries share one transaction.
func (b *BadgerBackend) PutBatch(ctx context.Context, tier string, entries map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(badgerTierKey(tier), badgerMarkerValue); err != nil {
			return err
		}
		for k, v := range entries {
			if err := txn.Set(badgerEntryKey(tier, k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger put batch: %w", mapBadgerError(err))
	}
	return nil
}

func mapBadgerError(err error) error {
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

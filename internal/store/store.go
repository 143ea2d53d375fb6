// Package store persists extraction results in a badger database so a
// document extracted once with the same settings is served from disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// Entry is one cached result. Page HTML is kept beside the result because
// the result's JSON form omits it.
type Entry struct {
	Key       string `badgerhold:"key"`
	Result    *model.ExtractionResult
	PageHTML  []string
	CreatedAt time.Time
}

// Cache is a badgerhold store of extraction results
type Cache struct {
	store  *badgerhold.Store
	logger *zap.Logger
}

// Open opens or creates the cache in dir
func Open(dir string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	// Elements carry their content behind an interface, which only the
	// JSON form round-trips.
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	logger.Debug("result cache opened", zap.String("dir", dir))
	return &Cache{store: store, logger: logger}, nil
}

// Lookup returns the cached result for key. Read errors count as a miss.
func (c *Cache) Lookup(key string) (*model.ExtractionResult, bool) {
	var entry Entry
	err := c.store.Get(key, &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if entry.Result == nil {
		return nil, false
	}
	for i := range entry.Result.Pages {
		if i < len(entry.PageHTML) {
			entry.Result.Pages[i].HTML = entry.PageHTML[i]
		}
	}
	return entry.Result, true
}

// Store saves a completed result under key. Results that were not
// extracted are refused.
func (c *Cache) Store(key string, result *model.ExtractionResult) error {
	if result == nil || !result.Extracted {
		return errors.New("only extracted results are cached")
	}
	entry := Entry{
		Key:       key,
		Result:    result,
		PageHTML:  make([]string, len(result.Pages)),
		CreatedAt: time.Now().UTC(),
	}
	for i, p := range result.Pages {
		entry.PageHTML[i] = p.HTML
	}
	if err := c.store.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Delete removes the entry for key, if any
func (c *Cache) Delete(key string) error {
	err := c.store.Delete(key, Entry{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// Evict removes entries stored before cutoff and reclaims value log space
func (c *Cache) Evict(cutoff time.Time) error {
	if err := c.store.DeleteMatching(&Entry{}, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return fmt.Errorf("failed to evict results: %w", err)
	}
	err := c.store.Badger().RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
		c.logger.Debug("value log gc skipped", zap.Error(err))
	}
	return nil
}

// Len returns the number of cached results
func (c *Cache) Len() (int, error) {
	n, err := c.store.Count(&Entry{}, nil)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database
func (c *Cache) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

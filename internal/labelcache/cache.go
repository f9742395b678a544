// Package labelcache persists the last known label of every API ever classified.
package labelcache

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/internal/labels"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// KeyFunc maps an identity to the cache key it is stored under.
type KeyFunc func(labels.APIIdentity) labels.APIIdentity

// FullIdentity keys records by all four identity fields.
func FullIdentity(id labels.APIIdentity) labels.APIIdentity { return id }

// ByMethod keys records by package, class and method. Function-parameter labels use it.
func ByMethod(id labels.APIIdentity) labels.APIIdentity { return id.MethodKey() }

// Cache is an in-memory view of one cache file. It is owned by a single run and is not safe for concurrent use.
type Cache struct {
	path    string
	key     KeyFunc
	records map[labels.APIIdentity]labels.LabelRecord
	logger  hclog.Logger
}

// New returns an empty cache bound to path.
func New(path string, key KeyFunc, logger hclog.Logger) *Cache {
	if key == nil {
		key = FullIdentity
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Cache{
		path:    path,
		key:     key,
		records: make(map[labels.APIIdentity]labels.LabelRecord),
		logger:  logger,
	}
}

// Load reads the cache file at path. A missing file yields an empty cache,
// an unreadable or undecodable one a CacheCorruptionError.
func Load(path string, key KeyFunc, logger hclog.Logger) (*Cache, error) {
	c := New(path, key, logger)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.logger.Debug("no label cache yet", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, &taintioErrors.CacheCorruptionError{Path: path, Err: err}
	}

	var records []labels.LabelRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &taintioErrors.CacheCorruptionError{Path: path, Err: err}
	}
	for _, rec := range records {
		c.Put(rec)
	}
	c.logger.Debug("label cache loaded", "path", path, "records", len(c.records))
	return c, nil
}

func (c *Cache) Path() string { return c.path }

func (c *Cache) Len() int { return len(c.records) }

// Key returns the key id is stored under.
func (c *Cache) Key(id labels.APIIdentity) labels.APIIdentity { return c.key(id) }

func (c *Cache) Get(id labels.APIIdentity) (labels.LabelRecord, bool) {
	rec, ok := c.records[c.key(id)]
	return rec, ok
}

func (c *Cache) Has(id labels.APIIdentity) bool {
	_, ok := c.records[c.key(id)]
	return ok
}

// Put stores rec, replacing any record under the same key.
func (c *Cache) Put(rec labels.LabelRecord) {
	c.records[c.key(rec.Identity)] = rec
}

// Records returns every record sorted by identity.
func (c *Cache) Records() []labels.LabelRecord {
	out := make([]labels.LabelRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	labels.SortRecords(out)
	return out
}

// Save rewrites the whole cache file atomically, records sorted by identity.
func (c *Cache) Save() error {
	data, err := json.MarshalIndent(c.Records(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode label cache: %w", err)
	}
	if err := files.WriteFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("failed to write label cache %q: %w", c.path, err)
	}
	c.logger.Debug("label cache saved", "path", c.path, "records", len(c.records))
	return nil
}

package loracache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultLRUSize holds every kind of every configuration of both engines.
	DefaultLRUSize = 4 * 2 * 16
	DefaultLRUTTL  = 1 * time.Hour
)

// LRUProvider keeps blobs in process. The comparator uses it to share the
// full-history reference store between configurations of one run.
// Blobs are shared by pointer and must not be mutated.
type LRUProvider struct {
	lru *expirable.LRU[string, *Blob]
}

// NewLRUProvider creates an in-process provider. ttl applies to every entry;
// the ttl passed to MSet is ignored.
func NewLRUProvider(size int, ttl time.Duration) Provider[Blob, BlobID] {
	if size <= 0 {
		size = DefaultLRUSize
	}

	if ttl <= 0 {
		ttl = DefaultLRUTTL
	}

	return &LRUProvider{
		lru: expirable.NewLRU[string, *Blob](size, nil, ttl),
	}
}

func (c *LRUProvider) Get(ctx context.Context, key *Key[BlobID], requiredModelVersion uint16) (*Blob, error) {
	_ = ctx

	item, found := c.lru.Get(key.Key)
	if !found {
		return nil, nil
	}

	if item.GetCacheModelVersion() != requiredModelVersion {
		return nil, nil
	}

	return item, nil
}

func (c *LRUProvider) MGet(ctx context.Context, keys []*Key[BlobID], requiredModelVersion uint16) (map[*Key[BlobID]]*Blob, []*Key[BlobID], error) {
	foundItems := make(map[*Key[BlobID]]*Blob)
	var missingKeys []*Key[BlobID]

	for _, keyEntry := range keys {
		item, _ := c.Get(ctx, keyEntry, requiredModelVersion)
		if item == nil {
			missingKeys = append(missingKeys, keyEntry)
			continue
		}

		foundItems[keyEntry] = item
	}

	return foundItems, missingKeys, nil
}

func (c *LRUProvider) MSet(ctx context.Context, values map[string]*Blob, ttl time.Duration) error {
	_, _ = ctx, ttl

	for k, v := range values {
		c.lru.Add(k, v)
	}

	return nil
}

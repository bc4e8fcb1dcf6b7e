package search

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

const (
	DefaultCacheTTL     = 10 * time.Minute
	DefaultCacheCleanup = 30 * time.Minute
)

// CachedService memoises successful lookups of another LookupService.
// Failures are not cached.
type CachedService struct {
	next  LookupService
	cache *gocache.Cache
}

// cachedABN distinguishes a cached "no match" from a cache miss.
type cachedABN struct {
	rec *abn.Record
}

// NewCachedService wraps next. Zero durations fall back to the defaults.
func NewCachedService(next LookupService, ttl, cleanup time.Duration) *CachedService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCacheCleanup
	}
	return &CachedService{next: next, cache: gocache.New(ttl, cleanup)}
}

func (s *CachedService) SearchByABN(ctx context.Context, id string) (*abn.Record, error) {
	key := "abn:" + id
	if v, ok := s.cache.Get(key); ok {
		if hit, ok := v.(cachedABN); ok {
			return copyRecord(hit.rec), nil
		}
	}

	rec, err := s.next.SearchByABN(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, cachedABN{rec: copyRecord(rec)}, gocache.DefaultExpiration)
	return rec, nil
}

func (s *CachedService) SearchByName(ctx context.Context, name string) ([]abn.Record, error) {
	key := "name:" + strings.ToLower(name)
	if v, ok := s.cache.Get(key); ok {
		if recs, ok := v.([]abn.Record); ok {
			return copyRecords(recs), nil
		}
	}

	recs, err := s.next.SearchByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, copyRecords(recs), gocache.DefaultExpiration)
	return recs, nil
}

// Flush drops every cached entry.
func (s *CachedService) Flush() {
	s.cache.Flush()
}

// Len returns the number of cached entries, expired ones included until cleanup.
func (s *CachedService) Len() int {
	return s.cache.ItemCount()
}

func copyRecord(r *abn.Record) *abn.Record {
	if r == nil {
		return nil
	}
	c := abn.Transform(*r).Record
	return &c
}

func copyRecords(rs []abn.Record) []abn.Record {
	out := make([]abn.Record, len(rs))
	for i, r := range rs {
		out[i] = abn.Transform(r).Record
	}
	return out
}

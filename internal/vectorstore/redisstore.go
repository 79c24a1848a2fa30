package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/core"
)

// RedisStore is the Redis-backed backend (§4.3, §9). It reuses the
// existing cache client's plain Get/Set for keying and jittered TTL (not
// its singleflight path); the "index" is a Redis set of document ids per store,
// scanned and lexically ranked on Query since Redis itself has no
// vector index here.
type RedisStore struct {
	client   *cache.Client
	raw      *redis.Client
	ttl      int // seconds
	indexKey string
}

func NewRedisStore(raw *redis.Client, client *cache.Client, ttlSeconds int) *RedisStore {
	if ttlSeconds <= 0 {
		ttlSeconds = 1800
	}
	return &RedisStore{client: client, raw: raw, ttl: ttlSeconds, indexKey: "cricket:documents:index"}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) docKey(id string) string {
	return fmt.Sprintf("cricket:document:%s", id)
}

func (s *RedisStore) Upsert(ctx context.Context, docs []core.Document) (UpsertResult, error) {
	result := UpsertResult{Errors: map[string]error{}}
	if s.raw == nil {
		return result, fmt.Errorf("redis store: no connection configured")
	}

	for _, doc := range docs {
		h := contentHash(doc)

		var existing core.Document
		if s.client.Get(ctx, s.docKey(doc.ID), &existing) && existing.ContentHash == h {
			result.DedupeHits = append(result.DedupeHits, doc.ID)
			continue
		}

		doc.ContentHash = h
		if err := s.client.Set(ctx, s.docKey(doc.ID), doc, time.Duration(s.ttl)*time.Second); err != nil {
			result.Errors[doc.ID] = err
			continue
		}
		if err := s.raw.SAdd(ctx, s.indexKey, doc.ID).Err(); err != nil {
			result.Errors[doc.ID] = err
			continue
		}
		result.Written++
	}
	return result, nil
}

func (s *RedisStore) Query(ctx context.Context, text string, filters Filters, k int) ([]string, error) {
	if s.raw == nil {
		return nil, nil
	}
	ids, err := s.raw.SMembers(ctx, s.indexKey).Result()
	if err != nil {
		return nil, nil
	}

	docs := make([]core.Document, 0, len(ids))
	for _, id := range ids {
		var d core.Document
		if s.client.Get(ctx, s.docKey(id), &d) {
			docs = append(docs, d)
		}
	}
	return rankByLexicalScore(docs, text, filters, k), nil
}

func (s *RedisStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var d core.Document
	if !s.client.Get(ctx, s.docKey(id), &d) {
		return nil, nil
	}
	return &d, nil
}

// Documents returns every document in the store's id index, for
// Tiered.Warm to copy into the in-memory tier on startup.
func (s *RedisStore) Documents(ctx context.Context) ([]core.Document, error) {
	if s.raw == nil {
		return nil, nil
	}
	ids, err := s.raw.SMembers(ctx, s.indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: documents: %w", err)
	}

	docs := make([]core.Document, 0, len(ids))
	for _, id := range ids {
		var d core.Document
		if s.client.Get(ctx, s.docKey(id), &d) {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *RedisStore) GetStats(ctx context.Context) (Stats, error) {
	if s.raw == nil {
		return Stats{}, nil
	}
	count, err := s.raw.SCard(ctx, s.indexKey).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{DocumentCount: int(count)}, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if s.raw == nil {
		return fmt.Errorf("redis store: no connection configured")
	}
	return s.raw.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/cache"
	"sajtstudio-gateway/model"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	previewKeyPrefix = "preview:"
	embedKeyPrefix   = "embed:"
	visitsKeyPrefix  = "visits:"
	allVisitsKey     = "embed_visits"

	entryCacheCost = 1024
	maxVisitLog    = 10000
)

var ErrNotFound = errors.New("slug not found")

// Store is the slug registry: previews and protected embeds, two distinct
// namespaces keyed by slug, persisted in Redis with a short-TTL read cache
// in front. The store is constructed once at startup and injected into the
// handlers; it owns no global state.
type Store struct {
	redis *redis.Client
	cache *cache.Cache
}

func New(rdb *redis.Client, c *cache.Cache) *Store {
	return &Store{redis: rdb, cache: c}
}

// --- previews ---

// GetPreview returns the preview entry for slug, or ErrNotFound.
func (s *Store) GetPreview(ctx context.Context, slug string) (*model.Preview, error) {
	key := previewKeyPrefix + slug

	if cached, found := s.cache.Get(key); found {
		if p, ok := cached.(model.Preview); ok {
			out := p
			return &out, nil
		}
	}

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var p model.Preview
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	s.cache.Set(key, p, entryCacheCost)
	return &p, nil
}

// UpsertPreview stores a preview entry. A single SET keeps the operation
// atomic per slug.
func (s *Store) UpsertPreview(ctx context.Context, p model.Preview) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = p.CreatedAt
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	key := previewKeyPrefix + p.Slug
	if err := s.redis.Set(ctx, key, data, 0).Err(); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

// PreviewSlugs lists every registered preview slug. The registry holds at
// most a few hundred entries, so a full SCAN is acceptable.
func (s *Store) PreviewSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	iter := s.redis.Scan(ctx, 0, previewKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		slugs = append(slugs, strings.TrimPrefix(iter.Val(), previewKeyPrefix))
	}
	return slugs, iter.Err()
}

// DeletePreview removes a preview entry.
func (s *Store) DeletePreview(ctx context.Context, slug string) (bool, error) {
	key := previewKeyPrefix + slug
	n, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	s.cache.Delete(key)
	return n > 0, nil
}

// --- protected embeds ---

// GetProtectedEmbed returns the protected-embed entry for slug, or
// ErrNotFound.
func (s *Store) GetProtectedEmbed(ctx context.Context, slug string) (*model.ProtectedEmbed, error) {
	key := embedKeyPrefix + slug

	if cached, found := s.cache.Get(key); found {
		if e, ok := cached.(model.ProtectedEmbed); ok {
			out := e
			return &out, nil
		}
	}

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var e model.ProtectedEmbed
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}

	s.cache.Set(key, e, entryCacheCost)
	return &e, nil
}

// UpsertProtectedEmbed hashes the supplied password with a fresh salt and
// stores the entry, replacing any previous one for the slug.
func (s *Store) UpsertProtectedEmbed(ctx context.Context, e model.ProtectedEmbed, password string) error {
	salt, err := auth.NewPasswordSalt()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password, salt)
	if err != nil {
		return err
	}
	e.PasswordSalt = salt
	e.PasswordHash = hash

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.LastAccessed.IsZero() {
		e.LastAccessed = e.CreatedAt
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := embedKeyPrefix + e.Slug
	if err := s.redis.Set(ctx, key, data, 0).Err(); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

// DeleteProtectedEmbed removes a protected embed.
func (s *Store) DeleteProtectedEmbed(ctx context.Context, slug string) (bool, error) {
	key := embedKeyPrefix + slug
	n, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	s.cache.Delete(key)
	return n > 0, nil
}

// VerifyPassword checks a candidate password against the stored hash for a
// protected embed. Unknown slugs and wrong passwords are indistinguishable
// to the caller.
func (s *Store) VerifyPassword(ctx context.Context, slug, password string) bool {
	e, err := s.GetProtectedEmbed(ctx, slug)
	if err != nil {
		return false
	}
	return auth.CheckPassword(password, e.PasswordSalt, e.PasswordHash)
}

// --- access bookkeeping (best effort, never fails the caller) ---

// TouchPreview updates a preview's last-accessed timestamp. Errors are
// swallowed; stats are not critical.
func (s *Store) TouchPreview(ctx context.Context, slug string) {
	s.touch(ctx, previewKeyPrefix+slug, func(data []byte) ([]byte, error) {
		var p model.Preview
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		p.LastAccessed = time.Now()
		return json.Marshal(p)
	})
}

// TouchProtectedEmbed updates a protected embed's last-accessed timestamp.
func (s *Store) TouchProtectedEmbed(ctx context.Context, slug string) {
	s.touch(ctx, embedKeyPrefix+slug, func(data []byte) ([]byte, error) {
		var e model.ProtectedEmbed
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		e.LastAccessed = time.Now()
		return json.Marshal(e)
	})
}

func (s *Store) touch(ctx context.Context, key string, update func([]byte) ([]byte, error)) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return
	}
	updated, err := update(data)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, updated, 0).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to touch last_accessed")
	}
	s.cache.Delete(key)
}

// LogVisit appends an access record for a protected embed. Fire-and-forget:
// failures are logged locally and never surfaced to the caller.
func (s *Store) LogVisit(ctx context.Context, visit model.EmbedVisit) {
	if visit.ID == "" {
		visit.ID = uuid.New().String()
	}
	if visit.AccessedAt.IsZero() {
		visit.AccessedAt = time.Now()
	}

	data, err := json.Marshal(visit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal visit record")
		return
	}

	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, visitsKeyPrefix+visit.Slug, data)
	pipe.LTrim(ctx, visitsKeyPrefix+visit.Slug, -maxVisitLog, -1)
	pipe.RPush(ctx, allVisitsKey, data)
	pipe.LTrim(ctx, allVisitsKey, -maxVisitLog, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("slug", visit.Slug).Msg("Failed to record embed visit")
	}
}

// Visits returns the most recent visit records, newest last. Empty slug
// reads the global log.
func (s *Store) Visits(ctx context.Context, slug string, limit int) ([]model.EmbedVisit, error) {
	if limit <= 0 {
		limit = 200
	}

	key := allVisitsKey
	if slug != "" {
		key = visitsKeyPrefix + slug
	}

	raw, err := s.redis.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	visits := make([]model.EmbedVisit, 0, len(raw))
	for _, item := range raw {
		var v model.EmbedVisit
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			continue
		}
		visits = append(visits, v)
	}
	return visits, nil
}

// VisitStats summarizes the global visit log.
type VisitStats struct {
	Total      int64            `json:"total"`
	BySlugSeen map[string]int64 `json:"bySlug"`
}

// Stats counts logged visits, total and per slug (over the retained
// window).
func (s *Store) Stats(ctx context.Context) (VisitStats, error) {
	stats := VisitStats{BySlugSeen: map[string]int64{}}

	total, err := s.redis.LLen(ctx, allVisitsKey).Result()
	if err != nil {
		return stats, err
	}
	stats.Total = total

	raw, err := s.redis.LRange(ctx, allVisitsKey, 0, -1).Result()
	if err != nil {
		return stats, err
	}
	for _, item := range raw {
		var v model.EmbedVisit
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			continue
		}
		stats.BySlugSeen[v.Slug]++
	}
	return stats, nil
}

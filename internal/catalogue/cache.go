package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 10 * time.Minute

// CachedReader is a read-through Redis cache in front of another Reader. Cache failures
// are logged and fall through to the underlying reader; not-found results are never cached.
type CachedReader struct {
	next   Reader
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewCachedReader(next Reader, client *redis.Client, ttl time.Duration) *CachedReader {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedReader{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "catalogue:",
	}
}

func (c *CachedReader) GetSurvey(ctx context.Context, id int64) (*Survey, error) {
	key := c.prefix + "survey:" + strconv.FormatInt(id, 10)
	var cached Survey
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	sv, err := c.next.GetSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, sv)
	return sv, nil
}

func (c *CachedReader) GetMiddleSurvey(ctx context.Context, id int64) (*MiddleSurvey, error) {
	key := c.prefix + "middle_survey:" + strconv.FormatInt(id, 10)
	var cached MiddleSurvey
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	ms, err := c.next.GetMiddleSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, ms)
	return ms, nil
}

// Invalidate drops the cached copies of a questionnaire and its surveys.
func (c *CachedReader) Invalidate(ctx context.Context, ms *MiddleSurvey) error {
	keys := []string{c.prefix + "middle_survey:" + strconv.FormatInt(ms.ID, 10)}
	for _, sv := range ms.Surveys {
		keys = append(keys, c.prefix+"survey:"+strconv.FormatInt(sv.ID, 10))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedReader) load(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("catalogue cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("catalogue cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *CachedReader) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("catalogue cache encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("catalogue cache set %s: %v", key, err)
	}
}

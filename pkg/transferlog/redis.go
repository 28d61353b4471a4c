package transferlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skycoin/stopwait/internal/netutil"
)

const (
	redisEntryPrefix = "stopwait:transfer:"
	redisIndexKey    = "stopwait:transfers"
	redisTimeout     = 5 * time.Second
)

type redisStore struct {
	client *redis.Client
}

// RedisStore implements Store on a redis server at url
// (redis://[:password@]host:port/db). Entries are JSON strings indexed by
// a sorted set scored by start time.
func RedisStore(url string) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	client := redis.NewClient(opts)

	retrier := netutil.NewRetrier(100*time.Millisecond, 3*time.Second, 2).SetLogger(log)
	err = retrier.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close redis client")
		}
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &redisStore{client: client}, nil
}

func (s *redisStore) Entry(id uuid.UUID) (*Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, redisEntryPrefix+id.String()).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	entry := &Entry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *redisStore) Record(id uuid.UUID, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisEntryPrefix+id.String(), raw, 0)
		pipe.ZAdd(ctx, redisIndexKey, &redis.Z{
			Score:  float64(entry.Started.UnixNano()),
			Member: id.String(),
		})
		return nil
	})
	return err
}

func (s *redisStore) Entries() ([]*Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	ids, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisEntryPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Entry, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			log.Warnf("Entry %s is indexed but missing", ids[i])
			continue
		}
		entry := &Entry{}
		if err := json.Unmarshal([]byte(str), entry); err != nil {
			log.WithError(err).Warnf("Skipping malformed entry %s", ids[i])
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const storeTimeout = 2 * time.Second

// ViewerStore keeps per-viewer values between page loads.
type ViewerStore interface {
	Get(ctx context.Context, viewer, key string) (string, bool, error)
	Set(ctx context.Context, viewer, key, value string) error
	Close() error
}

type MemoryStore struct {
	cache *ccache.Cache
	ttl   time.Duration
}

func NewMemoryStore(maxViewers int64, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: ccache.New(ccache.Configure().MaxSize(maxViewers).Buckets(16)),
		ttl:   ttl,
	}
}

func (ms *MemoryStore) Get(_ context.Context, viewer, key string) (string, bool, error) {
	item := ms.cache.Get(viewer + ":" + key)
	if item == nil || item.Expired() {
		return "", false, nil
	}
	value, ok := item.Value().(string)
	return value, ok, nil
}

func (ms *MemoryStore) Set(_ context.Context, viewer, key, value string) error {
	ms.cache.Set(viewer+":"+key, value, ms.ttl)
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.cache.Stop()
	return nil
}

type RedisStore struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisStore(rc *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rc: rc, ttl: ttl}
}

// DialRedis connects and pings, so a wrong address fails at startup.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, errors.Wrapf(err, "cannot reach redis at %s", addr)
	}
	return rc, nil
}

func redisKey(viewer, key string) string {
	return fmt.Sprintf("hlstv:viewer:%s:%s", viewer, key)
}

func (rs *RedisStore) Get(ctx context.Context, viewer, key string) (string, bool, error) {
	value, err := rs.rc.Get(ctx, redisKey(viewer, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return value, true, nil
}

func (rs *RedisStore) Set(ctx context.Context, viewer, key, value string) error {
	return errors.Wrap(rs.rc.Set(ctx, redisKey(viewer, key), value, rs.ttl).Err(), "redis set")
}

func (rs *RedisStore) Close() error {
	return rs.rc.Close()
}

// viewerStore binds a ViewerStore to one viewer for the player.
type viewerStore struct {
	ctx    context.Context
	store  ViewerStore
	viewer string
	log    *logrus.Entry
}

func (vs *viewerStore) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(vs.ctx, storeTimeout)
	defer cancel()
	value, ok, err := vs.store.Get(ctx, vs.viewer, key)
	if err != nil {
		vs.log.Warnf("Cannot read %s: %+v", key, err)
		return "", false
	}
	return value, ok
}

func (vs *viewerStore) Set(key, value string) {
	ctx, cancel := context.WithTimeout(vs.ctx, storeTimeout)
	defer cancel()
	if err := vs.store.Set(ctx, vs.viewer, key, value); err != nil {
		vs.log.Warnf("Cannot save %s: %+v", key, err)
	}
}

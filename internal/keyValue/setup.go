package keyValue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Value struct {
	value   string
	expires time.Time
}

// Store is redis when a client is given, otherwise an in-process map swept
// once a minute.
type Store struct {
	sugar       *zap.SugaredLogger
	redisClient *redis.Client

	mutex   sync.RWMutex
	hashmap map[string]Value
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

func New(sugar *zap.SugaredLogger, redisClient *redis.Client) *Store {
	return newStore(sugar, redisClient, time.Now)
}

// NewLocal is an in-process store with its own clock, mainly for tests.
func NewLocal(sugar *zap.SugaredLogger, now func() time.Time) *Store {
	return newStore(sugar, nil, now)
}

func newStore(sugar *zap.SugaredLogger, redisClient *redis.Client, now func() time.Time) *Store {
	s := &Store{
		sugar:       sugar,
		redisClient: redisClient,
		hashmap:     make(map[string]Value),
		now:         now,
		done:        make(chan struct{}),
	}

	if s.selfContained() {
		go s.checkForLocalExpiredKeys()
	}

	return s
}

func (s *Store) selfContained() bool {
	return s.redisClient == nil
}

func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	if s.selfContained() {
		return nil
	}
	return s.redisClient.Close()
}

func (s *Store) checkForLocalExpiredKeys() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for key, v := range s.hashmap {
		if v.expires.Before(now) {
			delete(s.hashmap, key)
		}
	}
}

// local reads must not hand out values the sweeper hasn't reached yet
func (s *Store) localValue(key string) string {
	v, ok := s.hashmap[key]
	if !ok || v.expires.Before(s.now()) {
		return ""
	}
	return v.value
}

// Get returns "" for missing keys.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	debugText := fmt.Sprintf("Getting value of key [%s]", key)
	if s.selfContained() {
		s.sugar.Debugf("%s from hashmap", debugText)

		s.mutex.RLock()
		defer s.mutex.RUnlock()

		return s.localValue(key), nil
	}

	s.sugar.Debugf("%s from redis", debugText)

	value, err := s.redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func (s *Store) GetDel(ctx context.Context, key string) (string, error) {
	debugText := fmt.Sprintf("Getting and deleting value of key [%s]", key)
	if s.selfContained() {
		s.sugar.Debugf("%s from hashmap", debugText)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		value := s.localValue(key)
		delete(s.hashmap, key)

		return value, nil
	}

	s.sugar.Debugf("%s from redis", debugText)

	value, err := s.redisClient.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string, expires time.Duration) error {
	debugText := fmt.Sprintf("Setting value of key [%s] to [%s]", key, value)
	if s.selfContained() {
		s.sugar.Debugf("%s in hashmap", debugText)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		s.hashmap[key] = Value{value, s.now().Add(expires)}

		return nil
	}

	s.sugar.Debugf("%s in redis", debugText)
	return s.redisClient.Set(ctx, key, value, expires).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.selfContained() {
		s.sugar.Debugf("Deleting key [%s] from hashmap", key)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		delete(s.hashmap, key)
		return nil
	}

	s.sugar.Debugf("Deleting key [%s] from redis", key)
	return s.redisClient.Del(ctx, key).Err()
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/storage"
)

const (
	keyPrefix      = "storefront:"
	changesChannel = "storefront:storage:changes"
)

// Store is a storage.Store on Redis. Every write is published on a shared
// channel so stores on other instances notify their own subscribers.
// Concurrent writers to one key are last-write-wins.
type Store struct {
	storage.Notifier

	client redis.UniversalClient
	origin string
	pubsub *redis.PubSub
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New subscribes to the change channel and starts relaying remote changes.
// The caller owns client.
func New(ctx context.Context, client redis.UniversalClient, logger *slog.Logger) (*Store, error) {
	pubsub := client.Subscribe(ctx, changesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", changesChannel, err)
	}

	s := &Store{
		client: client,
		origin: uuid.NewString(),
		pubsub: pubsub,
		logger: logger,
	}

	s.wg.Add(1)
	go s.relay()
	return s, nil
}

func (s *Store) relay() {
	defer s.wg.Done()

	for msg := range s.pubsub.Channel() {
		origin, key, ok := strings.Cut(msg.Payload, "|")
		if !ok {
			s.logger.Warn("malformed storage change message", slog.String("payload", msg.Payload))
			continue
		}
		if origin == s.origin {
			continue
		}
		s.Notify(key)
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrKeyNotFound(key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+key, value, 0)
		pipe.Publish(ctx, changesChannel, s.origin+"|"+key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.Notify(key)
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyPrefix+key)
		pipe.Publish(ctx, changesChannel, s.origin+"|"+key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	s.Notify(key)
	return nil
}

// Close stops the relay. It does not close the client.
func (s *Store) Close() error {
	err := s.pubsub.Close()
	s.wg.Wait()
	return err
}

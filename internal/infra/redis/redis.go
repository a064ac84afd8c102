package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ananyasub/argus/internal/sketch"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client wraps the go-redis client used for sketch persistence, the LSH
// band index, scan status keys, and the ingest stream.
type Client struct {
	*redis.Client
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", addr).Msg("Connected to Redis")
	return &Client{Client: rdb}, nil
}

// SketchStore adapts the client to the sketch.Store interface, persisting
// raw sketch bytes under their names.
type SketchStore struct {
	client *Client
}

// NewSketchStore creates a sketch store over the client.
func NewSketchStore(client *Client) *SketchStore {
	return &SketchStore{client: client}
}

func (s *SketchStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Client.Get(ctx, name).Bytes()
	if err == redis.Nil {
		return nil, sketch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (s *SketchStore) Set(ctx context.Context, name string, data []byte) error {
	if err := s.client.Client.Set(ctx, name, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

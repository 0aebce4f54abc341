// Package redis persists indicator results in Redis so that several engine
// processes can share one result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"screening-systemv1/internal/model"
	"screening-systemv1/internal/store"
)

// Config configures the Redis result store.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// KeyPrefix is prepended to every entry key. Default "ind".
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL expires entries; zero keeps them until overwritten.
	TTL time.Duration `mapstructure:"ttl"`

	// MaxFailures and ResetTimeout tune the circuit breaker.
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// Store is a Redis ResultStore. Entries are written with a single SET, which
// replaces the previous value atomically.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker
	prefix string
	ttl    time.Duration
}

// New connects to Redis and pings the server.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis result store connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, cfg Config, logger *zap.Logger) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ind"
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	reset := cfg.ResetTimeout
	if reset <= 0 {
		reset = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := NewCircuitBreaker(maxFailures, reset)
	cb.OnStateChange = func(from, to State) {
		logger.Warn("redis circuit breaker transition", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return &Store{
		client: client,
		cb:     cb,
		prefix: prefix,
		ttl:    cfg.TTL,
	}
}

// Client returns the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the circuit breaker guarding the client.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// Key returns the Redis key of (name, symbol).
func (s *Store) Key(name, symbol string) string {
	return s.prefix + ":" + name + ":" + symbol
}

// validateKey additionally rejects the key separator, so distinct
// (name, symbol) pairs never share a key.
func validateKey(name, symbol string) error {
	if err := store.ValidateKey(name, symbol); err != nil {
		return err
	}
	if strings.Contains(name, ":") || strings.Contains(symbol, ":") {
		return fmt.Errorf("%w: %q/%q contains ':'", store.ErrInvalidKey, name, symbol)
	}
	return nil
}

// Load returns nil, nil when the key does not exist.
func (s *Store) Load(ctx context.Context, name, symbol string) (*model.Result, error) {
	if err := validateKey(name, symbol); err != nil {
		return nil, err
	}
	key := s.Key(name, symbol)

	var data []byte
	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		b, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		data = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if data == nil {
		return nil, nil
	}

	res, err := store.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", key, err)
	}
	return res, nil
}

// Save replaces the entry for (name, symbol).
func (s *Store) Save(ctx context.Context, name, symbol string, res *model.Result) error {
	if err := validateKey(name, symbol); err != nil {
		return err
	}
	data, err := store.Encode(res)
	if err != nil {
		return err
	}
	key := s.Key(name, symbol)
	err = s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, key, data, s.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

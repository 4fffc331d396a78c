package cacheinfra

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc backed store.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the time-to-live for cached query results. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

var configFieldOrder = []string{"Capacity", "NumShards", "TTL", "EvictionPercentage", "EvictionInterval"}

// Validate checks if the configuration values are valid.
// The first failing field is reported as a *ConfigError.
func (c Config) Validate() error {
	const (
		positive = "must be greater than 0"
		percent  = "must be between 1 and 100"
	)

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required.Error(positive), validation.Min(1).Error(positive)),
		validation.Field(&c.NumShards, validation.Required.Error(positive), validation.Min(1).Error(positive)),
		validation.Field(&c.TTL, validation.Required.Error(positive), validation.Min(time.Duration(1)).Error(positive)),
		validation.Field(&c.EvictionPercentage,
			validation.Required.Error(percent),
			validation.Min(1).Error(percent),
			validation.Max(100).Error(percent),
		),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0)).Error("must be non-negative")),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for _, field := range configFieldOrder {
			if fieldErr, ok := fieldErrs[field]; ok {
				return &ConfigError{Field: field, Message: fieldErr.Error()}
			}
		}
	}
	return err
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycStore is a byte oriented key value store on top of a sturdyc client.
type SturdycStore struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycStore validates cfg and initializes a sturdyc client with it.
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycStore{client: client}, nil
}

// Get returns the stored bytes for key. Expired entries are reported as misses.
func (s *SturdycStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key with the configured TTL.
func (s *SturdycStore) Set(ctx context.Context, key string, value []byte) error {
	s.client.Set(key, value)
	return nil
}

// Size returns the number of entries currently held.
func (s *SturdycStore) Size() int {
	return s.client.Size()
}

package redis

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Address != "localhost:6379" {
		t.Errorf("Address = %s, want localhost:6379", cfg.Address)
	}
	if cfg.DB != 0 {
		t.Errorf("DB = %d, want 0", cfg.DB)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
	if cfg.PoolSize != 10 {
		t.Errorf("PoolSize = %d, want 10", cfg.PoolSize)
	}
	if cfg.KeyPrefix != "dynamic-mcp:" {
		t.Errorf("KeyPrefix = %s, want dynamic-mcp:", cfg.KeyPrefix)
	}
}

func TestConfigOptions_Chaining(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []ConfigOption{
		WithAddress("redis.example.com:6380"),
		WithPassword("secret"),
		WithDB(5),
		WithKeyPrefix("test:"),
		WithTimeouts(time.Second, 2*time.Second, 3*time.Second),
	} {
		opt(&cfg)
	}

	if cfg.Address != "redis.example.com:6380" || cfg.Password != "secret" || cfg.DB != 5 {
		t.Errorf("connection options not applied: %+v", cfg)
	}
	if cfg.KeyPrefix != "test:" {
		t.Errorf("KeyPrefix = %s, want test:", cfg.KeyPrefix)
	}
	if cfg.DialTimeout != time.Second || cfg.ReadTimeout != 2*time.Second || cfg.WriteTimeout != 3*time.Second {
		t.Errorf("timeouts not applied: %+v", cfg)
	}
}

func TestConfig_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   Config
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{"address", Config{Address: "cache:6379", DB: 2}, "cache:6379", 2, false},
		{"url", Config{URL: "redis://:pw@cache:6380/3", Address: "ignored:1"}, "cache:6380", 3, false},
		{"bad url", Config{URL: "http://cache"}, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts, err := tt.config.options()
			if tt.wantErr {
				if !errors.Is(err, ErrConnectionFailed) {
					t.Errorf("options() error = %v, want ErrConnectionFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("options() error = %v", err)
			}
			if opts.Addr != tt.wantAddr || opts.DB != tt.wantDB {
				t.Errorf("options() = %s/%d, want %s/%d", opts.Addr, opts.DB, tt.wantAddr, tt.wantDB)
			}
		})
	}
}

func TestItemStore_Keys(t *testing.T) {
	t.Parallel()

	s := NewItemStoreFromClient(nil, "test:")
	if got := s.itemKey(42); got != "test:items:42" {
		t.Errorf("itemKey(42) = %s", got)
	}
	if got := s.indexKey(); got != "test:items:ids" {
		t.Errorf("indexKey() = %s", got)
	}
	if got := s.seqKey(); got != "test:items:seq" {
		t.Errorf("seqKey() = %s", got)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on a borrowed client = %v", err)
	}
}

func TestDecodeItem(t *testing.T) {
	t.Parallel()

	it, err := decodeItem([]byte(`{"id":7,"name":"Lamp","description":null,"price":12.5}`))
	if err != nil || it.ID != 7 || it.Name != "Lamp" || it.Description != nil {
		t.Errorf("decodeItem() = %+v, %v", it, err)
	}
	if _, err := decodeItem([]byte("not json")); !errors.Is(err, ErrCorruptValue) {
		t.Errorf("decodeItem(garbage) error = %v, want ErrCorruptValue", err)
	}
}

package database

import (
	"runtime"
	"testing"
	"time"
)

func TestRedisOptions(t *testing.T) {
	base := 10 * runtime.GOMAXPROCS(0)

	tests := []struct {
		name     string
		opts     RedisOptions
		poolSize int
		timeout  time.Duration
	}{
		{"inline alignment", RedisOptions{URL: "redis://localhost:6379/0"}, base, 10 * time.Second},
		{"workers reserve connections", RedisOptions{URL: "redis://localhost:6379/0", Workers: 8, Timeout: 3 * time.Second}, base + 8, 3 * time.Second},
		{"url pool size wins", RedisOptions{URL: "redis://localhost:6379/0?pool_size=4", Workers: 8}, 4, 10 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opt, err := redisOptions(tc.opts)
			if err != nil {
				t.Fatalf("redisOptions: %v", err)
			}
			if opt.PoolSize != tc.poolSize {
				t.Errorf("expected pool size %d, got %d", tc.poolSize, opt.PoolSize)
			}
			if opt.DialTimeout != tc.timeout {
				t.Errorf("expected dial timeout %v, got %v", tc.timeout, opt.DialTimeout)
			}
			if opt.Addr != "localhost:6379" {
				t.Errorf("unexpected addr %q", opt.Addr)
			}
		})
	}
}

func TestRedisOptions_BadURL(t *testing.T) {
	if _, err := redisOptions(RedisOptions{URL: "http://localhost"}); err == nil {
		t.Fatalf("expected non-redis scheme to be rejected")
	}
}

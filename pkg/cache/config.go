package cache

import (
	"log/slog"
	"time"
)

type Config struct {
	LRU LRUConfig `yaml:"lru"`
	// TTLs overrides the LRU TTL of individual namespaces.
	TTLs map[Namespace]time.Duration `yaml:"ttls"`
}

func StorageFromConfig(cfg Config) *LRUStorage {
	s := NewLRUStorage(cfg.LRU)
	slog.Debug("index cache", slog.Int("size", s.size), slog.Duration("ttl", s.defaultTTL))
	for ns, ttl := range cfg.TTLs {
		slog.Debug("index cache namespace", slog.Any("namespace", ns), slog.Duration("ttl", ttl))
		s.NamespaceTTL(ns, ttl)
	}
	return s
}

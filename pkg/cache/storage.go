package cache

import (
	"context"
	"strings"
	"time"
)

type Key string
type Namespace string

// Key joins parts into a key of the namespace.
func (n Namespace) Key(parts ...string) Key {
	return Key(string(n) + ":::" + strings.Join(parts, "/"))
}

func (k Key) Namespace() Namespace {
	split := strings.SplitN(string(k), ":::", 2)
	if len(split) == 2 {
		return Namespace(split[0])
	}
	return ""
}

// Storage holds rendered indexes served by the mirror.
type Storage interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	Add(ctx context.Context, key Key, value []byte)
	NamespaceTTL(namespace Namespace, ttl time.Duration)
	// Purge drops every entry of a namespace.
	Purge(namespace Namespace)
}

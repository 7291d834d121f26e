package cache

import (
	"strings"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

type Policy string

const (
	PolicyFIFO = Policy("FIFO")
	PolicyLRU  = Policy("LRU")
	PolicyLFU  = Policy("LFU")
)

// DefaultEvictionFactor is the share of LFU capacity freed by one eviction.
const DefaultEvictionFactor = 0.5

// Cache is a bounded in-memory map. Implementations are not safe for
// concurrent use; the owning node serializes access.
type Cache interface {
	Get(key string) (string, bool)
	// Peek reads a value without touching eviction bookkeeping.
	Peek(key string) (string, bool)
	// Put upserts key and returns the keys evicted to make room.
	Put(key, value string) ([]string, error)
	Remove(key string) bool
	Contains(key string) bool
	Clear()
	Capacity() int
	Len() int
	// Keys returns a snapshot in eviction order, next victim first.
	Keys() []string
}

func PolicyByName(name string) (Policy, error) {
	switch p := Policy(strings.ToUpper(name)); p {
	case PolicyFIFO, PolicyLRU, PolicyLFU:
		return p, nil
	default:
		return "", kverror.Newf(kverror.KV_INVALID_ARGUMENT, "unknown cache policy %q", name)
	}
}

func New(policy Policy, capacity int) (Cache, error) {
	if capacity < 1 {
		return nil, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "cache capacity must be positive, got %d", capacity)
	}
	switch policy {
	case PolicyFIFO:
		return NewFIFO(capacity), nil
	case PolicyLRU:
		return NewLRU(capacity)
	case PolicyLFU:
		return NewLFU(capacity, DefaultEvictionFactor)
	default:
		return nil, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "unknown cache policy %q", policy)
	}
}

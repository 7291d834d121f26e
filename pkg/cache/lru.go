package cache

import (
	"github.com/hashicorp/golang-lru/simplelru"
)

// LRU evicts the least recently read or written key.
type LRU struct {
	capacity int
	lru      *simplelru.LRU
}

var _ Cache = &LRU{}

func NewLRU(capacity int) (*LRU, error) {
	l, err := simplelru.NewLRU(capacity, nil)
	if err != nil {
		return nil, err
	}
	return &LRU{capacity: capacity, lru: l}, nil
}

func (c *LRU) Get(key string) (string, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *LRU) Peek(key string) (string, bool) {
	v, ok := c.lru.Peek(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *LRU) Put(key, value string) ([]string, error) {
	var evicted []string
	if !c.lru.Contains(key) {
		for c.lru.Len() >= c.capacity {
			k, _, ok := c.lru.RemoveOldest()
			if !ok {
				break
			}
			evicted = append(evicted, k.(string))
		}
	}
	c.lru.Add(key, value)
	return evicted, nil
}

func (c *LRU) Remove(key string) bool {
	return c.lru.Remove(key)
}

func (c *LRU) Contains(key string) bool {
	return c.lru.Contains(key)
}

func (c *LRU) Clear() {
	c.lru.Purge()
}

func (c *LRU) Capacity() int {
	return c.capacity
}

func (c *LRU) Len() int {
	return c.lru.Len()
}

func (c *LRU) Keys() []string {
	keys := c.lru.Keys()
	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, k.(string))
	}
	return ret
}

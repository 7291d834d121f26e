package cache

import (
	"container/list"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

type lfuEntry struct {
	key       string
	value     string
	frequency int
	elem      *list.Element
}

// LFU keeps one insertion-ordered bucket per access frequency, from 0 up to
// capacity-1. A read moves an entry one bucket up; reads at the top bucket
// only refresh its position. Eviction drains the lowest non-empty bucket
// oldest first until evictionFactor*capacity entries are gone.
type LFU struct {
	capacity        int
	evictionFactor  float64
	items           map[string]*lfuEntry
	buckets         []*list.List
	lowestFrequency int
}

var _ Cache = &LFU{}

func NewLFU(capacity int, evictionFactor float64) (*LFU, error) {
	if capacity < 1 {
		return nil, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "cache capacity must be positive, got %d", capacity)
	}
	if evictionFactor <= 0 || evictionFactor > 1 {
		return nil, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "eviction factor must be in (0, 1], got %v", evictionFactor)
	}
	c := &LFU{
		capacity:       capacity,
		evictionFactor: evictionFactor,
		items:          make(map[string]*lfuEntry, capacity),
		buckets:        make([]*list.List, capacity),
	}
	for i := range c.buckets {
		c.buckets[i] = list.New()
	}
	return c, nil
}

func (c *LFU) maxFrequency() int {
	return c.capacity - 1
}

func (c *LFU) Get(key string) (string, bool) {
	e, ok := c.items[key]
	if !ok {
		return "", false
	}

	from := e.frequency
	c.buckets[from].Remove(e.elem)
	if from < c.maxFrequency() {
		e.frequency++
	}
	e.elem = c.buckets[e.frequency].PushBack(e)

	if from == c.lowestFrequency && c.buckets[from].Len() == 0 {
		c.findNextLowestFrequency()
	}
	return e.value, true
}

func (c *LFU) Peek(key string) (string, bool) {
	if e, ok := c.items[key]; ok {
		return e.value, true
	}
	return "", false
}

func (c *LFU) Put(key, value string) ([]string, error) {
	if e, ok := c.items[key]; ok {
		e.value = value
		return nil, nil
	}

	var evicted []string
	if len(c.items) >= c.capacity {
		var err error
		evicted, err = c.evict()
		if err != nil {
			return evicted, err
		}
	}

	e := &lfuEntry{key: key, value: value}
	e.elem = c.buckets[0].PushBack(e)
	c.items[key] = e
	c.lowestFrequency = 0
	return evicted, nil
}

func (c *LFU) evict() ([]string, error) {
	target := c.evictionFactor * float64(c.capacity)
	var evicted []string

	for float64(len(evicted)) < target {
		bucket := c.buckets[c.lowestFrequency]
		oldest := bucket.Front()
		if oldest == nil {
			return evicted, kverror.Newf(kverror.KV_CACHE_INVARIANT,
				"lowest frequency bucket %d is empty with %d of %v evictions left", c.lowestFrequency, len(evicted), target)
		}
		e := bucket.Remove(oldest).(*lfuEntry)
		delete(c.items, e.key)
		evicted = append(evicted, e.key)

		if bucket.Len() == 0 && len(c.items) > 0 {
			c.findNextLowestFrequency()
		}
	}
	return evicted, nil
}

// findNextLowestFrequency moves the cursor to the first non-empty bucket at
// or above it, wrapping to 0 when every bucket above is empty.
func (c *LFU) findNextLowestFrequency() {
	for f := c.lowestFrequency; f < len(c.buckets); f++ {
		if c.buckets[f].Len() > 0 {
			c.lowestFrequency = f
			return
		}
	}
	for f := 0; f < c.lowestFrequency; f++ {
		if c.buckets[f].Len() > 0 {
			c.lowestFrequency = f
			return
		}
	}
	c.lowestFrequency = 0
}

func (c *LFU) Remove(key string) bool {
	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.buckets[e.frequency].Remove(e.elem)
	delete(c.items, key)
	if e.frequency == c.lowestFrequency && c.buckets[e.frequency].Len() == 0 {
		c.findNextLowestFrequency()
	}
	return true
}

func (c *LFU) Contains(key string) bool {
	_, ok := c.items[key]
	return ok
}

func (c *LFU) Clear() {
	for _, b := range c.buckets {
		b.Init()
	}
	c.items = make(map[string]*lfuEntry, c.capacity)
	c.lowestFrequency = 0
}

func (c *LFU) Capacity() int {
	return c.capacity
}

func (c *LFU) Len() int {
	return len(c.items)
}

func (c *LFU) Keys() []string {
	ret := make([]string, 0, len(c.items))
	for _, b := range c.buckets {
		for e := b.Front(); e != nil; e = e.Next() {
			ret = append(ret, e.Value.(*lfuEntry).key)
		}
	}
	return ret
}

// LowestFrequency exposes the eviction cursor.
func (c *LFU) LowestFrequency() int {
	return c.lowestFrequency
}

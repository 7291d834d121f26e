package cache

import "container/list"

type fifoEntry struct {
	key   string
	value string
}

// FIFO evicts in insertion order. Updating a key keeps its position.
type FIFO struct {
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

var _ Cache = &FIFO{}

func NewFIFO(capacity int) *FIFO {
	return &FIFO{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *FIFO) Get(key string) (string, bool) {
	if e, ok := c.items[key]; ok {
		return e.Value.(*fifoEntry).value, true
	}
	return "", false
}

func (c *FIFO) Peek(key string) (string, bool) {
	return c.Get(key)
}

func (c *FIFO) Put(key, value string) ([]string, error) {
	if e, ok := c.items[key]; ok {
		e.Value.(*fifoEntry).value = value
		return nil, nil
	}

	var evicted []string
	for len(c.items) >= c.capacity {
		oldest := c.order.Front()
		entry := c.order.Remove(oldest).(*fifoEntry)
		delete(c.items, entry.key)
		evicted = append(evicted, entry.key)
	}
	c.items[key] = c.order.PushBack(&fifoEntry{key: key, value: value})
	return evicted, nil
}

func (c *FIFO) Remove(key string) bool {
	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(e)
	delete(c.items, key)
	return true
}

func (c *FIFO) Contains(key string) bool {
	_, ok := c.items[key]
	return ok
}

func (c *FIFO) Clear() {
	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

func (c *FIFO) Capacity() int {
	return c.capacity
}

func (c *FIFO) Len() int {
	return len(c.items)
}

func (c *FIFO) Keys() []string {
	ret := make([]string, 0, len(c.items))
	for e := c.order.Front(); e != nil; e = e.Next() {
		ret = append(ret, e.Value.(*fifoEntry).key)
	}
	return ret
}

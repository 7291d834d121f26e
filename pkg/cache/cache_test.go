package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var policies = []Policy{PolicyFIFO, PolicyLRU, PolicyLFU}

func TestPolicyByName(t *testing.T) {
	assert := assert.New(t)

	for _, name := range []string{"fifo", "LRU", "Lfu"} {
		_, err := PolicyByName(name)
		assert.NoError(err)
	}
	_, err := PolicyByName("ARC")
	assert.Error(err)

	_, err = New(PolicyLRU, 0)
	assert.Error(err)
	_, err = New(Policy("ARC"), 4)
	assert.Error(err)
}

func TestCacheContract(t *testing.T) {
	for _, p := range policies {
		t.Run(string(p), func(t *testing.T) {
			assert := assert.New(t)

			c, err := New(p, 4)
			require.NoError(t, err)
			assert.Equal(4, c.Capacity())

			_, ok := c.Get("missing")
			assert.False(ok)

			evicted, err := c.Put("a", "1")
			assert.NoError(err)
			assert.Empty(evicted)
			assert.True(c.Contains("a"))

			v, ok := c.Get("a")
			assert.True(ok)
			assert.Equal("1", v)

			_, err = c.Put("a", "2")
			assert.NoError(err)
			v, _ = c.Get("a")
			assert.Equal("2", v)
			assert.Equal(1, c.Len())

			assert.True(c.Remove("a"))
			assert.False(c.Remove("a"))
			assert.False(c.Contains("a"))

			for i := 0; i < 4; i++ {
				_, err := c.Put(fmt.Sprintf("k%d", i), "v")
				assert.NoError(err)
			}
			assert.Equal(4, c.Len())
			assert.Len(c.Keys(), 4)

			c.Clear()
			assert.Equal(0, c.Len())
			assert.Empty(c.Keys())
		})
	}
}

func TestCacheNeverExceedsCapacity(t *testing.T) {
	for _, p := range policies {
		t.Run(string(p), func(t *testing.T) {
			c, err := New(p, 5)
			require.NoError(t, err)

			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%37)
				evicted, err := c.Put(key, "v")
				require.NoError(t, err)
				for _, e := range evicted {
					assert.False(t, c.Contains(e))
				}
				if i%3 == 0 {
					c.Get(fmt.Sprintf("k%d", (i*7)%37))
				}
				assert.LessOrEqual(t, c.Len(), 5)
				assert.True(t, c.Contains(key))
			}
		})
	}
}

func TestFIFOEvictsFirstInserted(t *testing.T) {
	assert := assert.New(t)

	c := NewFIFO(3)
	for _, k := range []string{"k0", "k1", "k2"} {
		_, err := c.Put(k, "v")
		assert.NoError(err)
	}
	c.Get("k0")

	evicted, err := c.Put("k3", "v")
	assert.NoError(err)
	assert.Equal([]string{"k0"}, evicted)
	assert.Equal([]string{"k1", "k2", "k3"}, c.Keys())
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLRU(3)
	assert.NoError(err)
	for _, k := range []string{"k0", "k1", "k2"} {
		_, err := c.Put(k, "v")
		assert.NoError(err)
	}
	c.Get("k0")

	evicted, err := c.Put("k3", "v")
	assert.NoError(err)
	assert.Equal([]string{"k1"}, evicted)
	assert.True(c.Contains("k0"))
	assert.Equal([]string{"k2", "k0", "k3"}, c.Keys())
}

func TestLRUPutRefreshesRecency(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLRU(2)
	assert.NoError(err)
	_, _ = c.Put("k0", "v")
	_, _ = c.Put("k1", "v")
	_, _ = c.Put("k0", "v2")

	evicted, err := c.Put("k2", "v")
	assert.NoError(err)
	assert.Equal([]string{"k1"}, evicted)
}

func TestPeekKeepsEvictionOrder(t *testing.T) {
	for _, p := range policies {
		t.Run(string(p), func(t *testing.T) {
			assert := assert.New(t)

			c, err := New(p, 2)
			require.NoError(t, err)
			_, err = c.Put("k0", "v0")
			require.NoError(t, err)
			_, err = c.Put("k1", "v1")
			require.NoError(t, err)
			if p == PolicyLFU {
				c.Get("k1")
			}

			for i := 0; i < 3; i++ {
				v, ok := c.Peek("k0")
				assert.True(ok)
				assert.Equal("v0", v)
			}
			_, ok := c.Peek("missing")
			assert.False(ok)

			evicted, err := c.Put("k2", "v2")
			require.NoError(t, err)
			assert.Equal([]string{"k0"}, evicted)
		})
	}
}

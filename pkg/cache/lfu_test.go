package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(3, DefaultEvictionFactor)
	require.NoError(t, err)
	for _, k := range []string{"k0", "k1", "k2"} {
		_, err := c.Put(k, "v")
		assert.NoError(err)
	}
	for i := 0; i < 5; i++ {
		c.Get("k0")
	}
	c.Get("k1")
	c.Get("k2")
	assert.Equal(1, c.LowestFrequency())

	evicted, err := c.Put("k3", "v")
	assert.NoError(err)

	// 0.5 * 3 rounds up to two victims, both from the lowest bucket
	assert.Equal([]string{"k1", "k2"}, evicted)
	assert.True(c.Contains("k0"))
	assert.True(c.Contains("k3"))
	assert.Equal(0, c.LowestFrequency())
}

func TestLFUFrequencyIsCapped(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(3, DefaultEvictionFactor)
	require.NoError(t, err)
	_, _ = c.Put("a", "v")
	_, _ = c.Put("b", "v")
	for i := 0; i < 10; i++ {
		c.Get("a")
		c.Get("b")
	}
	assert.Equal(2, c.items["a"].frequency)
	assert.Equal(2, c.items["b"].frequency)

	// at the cap a read refreshes recency, so a becomes the newest
	c.Get("a")
	assert.Equal([]string{"b", "a"}, c.Keys())
	assert.Equal(2, c.LowestFrequency())
}

func TestLFUPutExistingUpdatesValueOnly(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(4, DefaultEvictionFactor)
	require.NoError(t, err)
	_, _ = c.Put("a", "1")
	c.Get("a")
	_, _ = c.Put("a", "2")

	assert.Equal(1, c.items["a"].frequency)
	v, _ := c.Get("a")
	assert.Equal("2", v)
}

func TestLFUCursorFollowsRemove(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(4, DefaultEvictionFactor)
	require.NoError(t, err)
	_, _ = c.Put("a", "v")
	_, _ = c.Put("b", "v")
	c.Get("b")
	c.Get("b")
	assert.Equal(0, c.LowestFrequency())

	assert.True(c.Remove("a"))
	assert.Equal(2, c.LowestFrequency())

	assert.True(c.Remove("b"))
	assert.Equal(0, c.LowestFrequency())
}

func TestLFUNewKeyResetsCursor(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(4, DefaultEvictionFactor)
	require.NoError(t, err)
	_, _ = c.Put("a", "v")
	c.Get("a")
	assert.Equal(1, c.LowestFrequency())

	_, _ = c.Put("b", "v")
	assert.Equal(0, c.LowestFrequency())
}

func TestLFUEvictionSpansBuckets(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(4, DefaultEvictionFactor)
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c", "d"} {
		_, _ = c.Put(k, "v")
	}
	c.Get("b")
	c.Get("c")
	c.Get("c")
	c.Get("d")
	c.Get("d")
	c.Get("d")

	// a sits alone in bucket 0, b is next in bucket 1
	evicted, err := c.Put("e", "v")
	assert.NoError(err)
	assert.Equal([]string{"a", "b"}, evicted)
	assert.ElementsMatch([]string{"c", "d", "e"}, c.Keys())
}

func TestLFUCapacityOne(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(1, DefaultEvictionFactor)
	require.NoError(t, err)
	_, _ = c.Put("a", "v")
	c.Get("a")
	c.Get("a")

	evicted, err := c.Put("b", "v")
	assert.NoError(err)
	assert.Equal([]string{"a"}, evicted)
	assert.Equal([]string{"b"}, c.Keys())
}

func TestLFUInvariantFault(t *testing.T) {
	assert := assert.New(t)

	c, err := NewLFU(2, DefaultEvictionFactor)
	require.NoError(t, err)
	_, _ = c.Put("a", "v")
	_, _ = c.Put("b", "v")

	// corrupt the cursor on purpose
	c.lowestFrequency = 1
	_, err = c.Put("c", "v")
	assert.Error(err)
}

func TestNewLFUValidation(t *testing.T) {
	_, err := NewLFU(0, DefaultEvictionFactor)
	assert.Error(t, err)
	_, err = NewLFU(3, 0)
	assert.Error(t, err)
	_, err = NewLFU(3, 1.5)
	assert.Error(t, err)
}

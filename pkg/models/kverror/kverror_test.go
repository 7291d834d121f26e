package kverror

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRendering(t *testing.T) {
	assert := assert.New(t)

	err := Newf(KV_NO_IDLE_NODES, "requested %d nodes, %d idle", 3, 1)
	assert.Equal("Code: KVI. Name: No idle nodes. Description: requested 3 nodes, 1 idle.", err.Error())

	err = New("unknown", "boom")
	assert.Equal("Code: unknown. Name: Unexpected error. Description: boom.", err.Error())
}

func TestHasCode(t *testing.T) {
	assert := assert.New(t)

	err := fmt.Errorf("add node: %w", New(KV_MIGRATION_FAILED, "peer reset"))
	assert.True(HasCode(err, KV_MIGRATION_FAILED))
	assert.False(HasCode(err, KV_PROTOCOL))
	assert.False(HasCode(fmt.Errorf("plain"), KV_PROTOCOL))
}

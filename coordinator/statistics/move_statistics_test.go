package statistics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pg-sharding/ringkv/coordinator/statistics"
)

func TestMoveStatistics(t *testing.T) {
	assert := assert.New(t)

	r := statistics.NewRecorder()
	assert.Equal(&statistics.MoveStatistics{}, r.GetMoveStats())

	// Operations outside a move are not counted.
	r.RecordQDBOperation(time.Hour)
	assert.Error(r.RecordMoveFinish(time.Now()))

	start := time.Unix(100, 0)
	r.RecordMoveStart(start)
	r.RecordQDBOperation(2 * time.Second)
	r.RecordNodeOperation(4 * time.Second)
	assert.NoError(r.RecordMoveFinish(start.Add(10 * time.Second)))

	r.RecordMoveStart(start)
	r.RecordNodeOperation(2 * time.Second)
	assert.NoError(r.RecordMoveFinish(start.Add(20 * time.Second)))

	assert.Equal(&statistics.MoveStatistics{
		TotalMoves: 2,
		TotalTime:  15 * time.Second,
		NodeTime:   3 * time.Second,
		QDBTime:    time.Second,
	}, r.GetMoveStats())
}

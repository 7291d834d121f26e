package statistics

import (
	"sync"
	"time"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

// Recorder accumulates how long membership changes spend in the metadata
// directory and in node control calls.
type Recorder struct {
	mu sync.Mutex

	qdbTime              time.Duration
	nodeTime             time.Duration
	qdbTimeTotal         time.Duration
	nodeTimeTotal        time.Duration
	moveTimeTotal        time.Duration
	currentMoveStartTime time.Time
	totalMoves           int
	moveInProgress       bool
}

type MoveStatistics struct {
	TotalMoves int
	TotalTime  time.Duration
	NodeTime   time.Duration
	QDBTime    time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordMoveStart(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.moveInProgress = true
	r.qdbTime = 0
	r.nodeTime = 0
	r.currentMoveStartTime = t
}

func (r *Recorder) RecordMoveFinish(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.moveInProgress {
		return kverror.New(kverror.KV_UNEXPECTED, "unable to record move finish: there's no move in progress")
	}
	r.moveInProgress = false
	r.qdbTimeTotal += r.qdbTime
	r.nodeTimeTotal += r.nodeTime
	r.moveTimeTotal += t.Sub(r.currentMoveStartTime)
	r.totalMoves++
	r.qdbTime = 0
	r.nodeTime = 0
	return nil
}

func (r *Recorder) RecordQDBOperation(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.moveInProgress {
		r.qdbTime += duration
	}
}

func (r *Recorder) RecordNodeOperation(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.moveInProgress {
		r.nodeTime += duration
	}
}

// GetMoveStats returns per move averages.
func (r *Recorder) GetMoveStats() *MoveStatistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.totalMoves == 0 {
		return &MoveStatistics{}
	}
	n := time.Duration(r.totalMoves)
	return &MoveStatistics{
		TotalMoves: r.totalMoves,
		NodeTime:   r.nodeTimeTotal / n,
		QDBTime:    r.qdbTimeTotal / n,
		TotalTime:  r.moveTimeTotal / n,
	}
}

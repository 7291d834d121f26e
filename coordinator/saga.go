package coordinator

import (
	"context"
	"time"

	"github.com/pg-sharding/ringkv/pkg/command"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/qdb"
)

// sagaStep is one forward action of a membership change with the action
// compensating it. undo may be nil.
type sagaStep struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// runSaga executes steps in order. When one fails, the completed steps are
// compensated newest first and the step error is returned. Compensation runs
// even after ctx expired. A journaled change is marked COMPLETE once every
// step succeeded and dropped once the change is either done or undone; a
// change whose compensation failed stays journaled for Recover.
func (c *Coordinator) runSaga(ctx context.Context, change *qdb.MembershipChange, steps ...sagaStep) error {
	undoCtx := context.WithoutCancel(ctx)

	commands := make([]command.Command, 0, len(steps))
	for _, s := range steps {
		commands = append(commands, command.NewCustom(
			func() error {
				if err := ctx.Err(); err != nil {
					return kverror.Newf(kverror.KV_UNEXPECTED, "%s: %s", s.name, err)
				}
				c.log.Debug().Str("step", s.name).Msg("coordinator: saga step")
				return s.do(ctx)
			},
			func() error {
				if s.undo == nil {
					return nil
				}
				c.log.Info().Str("step", s.name).Msg("coordinator: compensating saga step")
				return s.undo(undoCtx)
			},
		))
	}

	saver := func() error {
		if change == nil {
			return nil
		}
		return c.setChangeStatus(ctx, change, qdb.ChangeComplete)
	}

	err := command.Execute(saver, commands...)
	if kverror.HasCode(err, kverror.KV_ROLLBACK_INCOMPLETE) {
		c.log.Error().Err(err).Msg("coordinator: saga compensation failed, change stays journaled")
		return err
	}
	if change != nil {
		if rmErr := c.removeChange(undoCtx); rmErr != nil {
			c.log.Error().Err(rmErr).Str("change", change.ID).Msg("coordinator: failed to drop membership change journal")
		}
	}
	if err != nil {
		c.log.Error().Err(err).Msg("coordinator: saga rolled back")
	}
	return err
}

func (c *Coordinator) recordChange(ctx context.Context, change *qdb.MembershipChange) error {
	t := time.Now()
	defer func() { c.stats.RecordQDBOperation(time.Since(t)) }()
	return c.db.RecordMembershipChange(ctx, change)
}

func (c *Coordinator) setChangeStatus(ctx context.Context, change *qdb.MembershipChange, status qdb.MembershipChangeStatus) error {
	change.Status = status
	return c.recordChange(ctx, change)
}

func (c *Coordinator) removeChange(ctx context.Context) error {
	t := time.Now()
	defer func() { c.stats.RecordQDBOperation(time.Since(t)) }()
	return c.db.RemoveMembershipChange(ctx)
}

package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/protocol"
	"github.com/pg-sharding/ringkv/pkg/ring"
)

// NodeControl sends control plane commands to storage nodes.
//
//go:generate mockgen -source=coordinator/control.go -destination=coordinator/mock/control.go -package=mock
type NodeControl interface {
	Start(ctx context.Context, addr string) error
	Stop(ctx context.Context, addr string) error
	Shutdown(ctx context.Context, addr string) error
	// LockWrite makes addr stream the keys of r to peer. The lock stays
	// set until UnlockWrite, also when the transfer fails.
	LockWrite(ctx context.Context, addr, peer string, r ring.Range) error
	UnlockWrite(ctx context.Context, addr string) error
	UpdateMetadata(ctx context.Context, addr string) error
	Stats(ctx context.Context, addr string) (string, error)
}

// TCPControl opens one connection per command.
type TCPControl struct {
	timeout          time.Duration
	migrationTimeout time.Duration
	log              zerolog.Logger
}

var _ NodeControl = &TCPControl{}

func NewTCPControl(timeout, migrationTimeout time.Duration, log zerolog.Logger) *TCPControl {
	return &TCPControl{
		timeout:          timeout,
		migrationTimeout: migrationTimeout,
		log:              log,
	}
}

// send runs req against addr. Transport and CONTROL_ERROR failures carry
// code.
func (c *TCPControl) send(ctx context.Context, addr string, timeout time.Duration, req *protocol.Request, code string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.log.Debug().Str("addr", addr).Str("request", req.String()).Msg("coordinator: send control command")
	resp, err := conn.Do(ctx, addr, req.String())
	if err != nil {
		return "", kverror.Newf(code, "%s on %s: %s", req.Verb, addr, err)
	}

	switch {
	case resp.Status == protocol.ControlOK && resp.Verb == req.Verb:
		return resp.Detail, nil
	case resp.Status == protocol.ControlError:
		return "", kverror.Newf(code, "%s on %s: %s", req.Verb, addr, resp.Detail)
	default:
		return "", kverror.Newf(kverror.KV_PROTOCOL, "%s on %s: unexpected reply %q", req.Verb, addr, resp.String())
	}
}

func (c *TCPControl) Start(ctx context.Context, addr string) error {
	_, err := c.send(ctx, addr, c.timeout, &protocol.Request{Verb: protocol.VerbStart}, kverror.KV_NODE_UNAVAILABLE)
	return err
}

func (c *TCPControl) Stop(ctx context.Context, addr string) error {
	_, err := c.send(ctx, addr, c.timeout, &protocol.Request{Verb: protocol.VerbStop}, kverror.KV_NODE_UNAVAILABLE)
	return err
}

func (c *TCPControl) Shutdown(ctx context.Context, addr string) error {
	_, err := c.send(ctx, addr, c.timeout, &protocol.Request{Verb: protocol.VerbShutdown}, kverror.KV_NODE_UNAVAILABLE)
	return err
}

func (c *TCPControl) LockWrite(ctx context.Context, addr, peer string, r ring.Range) error {
	detail, err := c.send(ctx, addr, c.migrationTimeout, &protocol.Request{
		Verb:  protocol.VerbLockWrite,
		Peer:  peer,
		Range: r.String(),
	}, kverror.KV_MIGRATION_FAILED)
	if err != nil {
		return err
	}
	c.log.Info().Str("from", addr).Str("to", peer).Str("range", r.String()).Str("result", detail).Msg("coordinator: migration done")
	return nil
}

func (c *TCPControl) UnlockWrite(ctx context.Context, addr string) error {
	_, err := c.send(ctx, addr, c.timeout, &protocol.Request{Verb: protocol.VerbUnlockWrite}, kverror.KV_NODE_UNAVAILABLE)
	return err
}

func (c *TCPControl) UpdateMetadata(ctx context.Context, addr string) error {
	_, err := c.send(ctx, addr, c.timeout, &protocol.Request{Verb: protocol.VerbUpdateMetadata}, kverror.KV_NODE_UNAVAILABLE)
	return err
}

func (c *TCPControl) Stats(ctx context.Context, addr string) (string, error) {
	return c.send(ctx, addr, c.timeout, &protocol.Request{Verb: protocol.VerbStats}, kverror.KV_NODE_UNAVAILABLE)
}

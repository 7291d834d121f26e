package node

import (
	"context"
	"fmt"

	"github.com/pg-sharding/ringkv/pkg/protocol"
	"github.com/pg-sharding/ringkv/pkg/ring"
)

// Handle executes one request frame and returns the frame to answer with.
// Requests are never rejected by closing the connection; malformed input
// gets FAILED.
func (n *Node) Handle(ctx context.Context, line string) *protocol.Response {
	req, err := protocol.ParseRequest(line)
	if err != nil {
		n.log.Debug().Err(err).Str("line", line).Msg("node: malformed request")
		return protocol.Failure(err.Error())
	}

	switch req.Verb {
	case protocol.VerbGet:
		return n.Get(req.Key)
	case protocol.VerbPut:
		return n.Put(req.Key, req.Value)
	}

	if n.State() == StateShutDown {
		if req.Verb == protocol.VerbTransfer {
			return protocol.Failure("node is shut down")
		}
		return protocol.ControlFailure(req.Verb, "node is shut down")
	}
	if req.Verb != protocol.VerbTransfer {
		n.log.Debug().Str("verb", string(req.Verb)).Msg("node: control request")
	}

	switch req.Verb {
	case protocol.VerbTransfer:
		return n.Transfer(req.Key, req.Value)
	case protocol.VerbStart:
		return ack(req.Verb, "", n.Start())
	case protocol.VerbStop:
		return ack(req.Verb, "", n.Stop())
	case protocol.VerbShutdown:
		return ack(req.Verb, "", n.Shutdown())
	case protocol.VerbUnlockWrite:
		n.UnlockWrite()
		return protocol.ControlAck(req.Verb, "")
	case protocol.VerbUpdateMetadata:
		return ack(req.Verb, "", n.UpdateMetadata(ctx))
	case protocol.VerbLockWrite:
		r, err := ring.ParseRange(req.Range, n.opts.HashFunction)
		if err != nil {
			return protocol.ControlFailure(req.Verb, err.Error())
		}
		moved, err := n.LockWrite(ctx, req.Peer, r)
		return ack(req.Verb, fmt.Sprintf("moved %d keys", moved), err)
	case protocol.VerbStats:
		return protocol.ControlAck(req.Verb, n.stats.Summary())
	default:
		return protocol.ControlFailure(req.Verb, "unsupported verb")
	}
}

func ack(verb protocol.Verb, detail string, err error) *protocol.Response {
	if err != nil {
		return protocol.ControlFailure(verb, err.Error())
	}
	return protocol.ControlAck(verb, detail)
}

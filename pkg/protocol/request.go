package protocol

import (
	"strings"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

type Request struct {
	Verb  Verb
	Key   string
	Value string
	// lockWrite arguments
	Peer  string
	Range string
}

func ParseRequest(line string) (*Request, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, kverror.New(kverror.KV_PROTOCOL, "empty command")
	}
	verb, ok := verbs[strings.ToLower(tokens[0])]
	if !ok {
		return nil, kverror.Newf(kverror.KV_PROTOCOL, "unknown command %q", tokens[0])
	}

	req := &Request{Verb: verb}
	switch verb {
	case VerbGet:
		if len(tokens) != 2 {
			return nil, kverror.New(kverror.KV_PROTOCOL, "usage: get <key>")
		}
		req.Key = tokens[1]
	case VerbPut:
		if len(tokens) < 2 {
			return nil, kverror.New(kverror.KV_PROTOCOL, "usage: put <key> [value]")
		}
		req.Key = tokens[1]
		req.Value = joinTokens(tokens[2:])
	case VerbTransfer:
		if len(tokens) < 3 {
			return nil, kverror.New(kverror.KV_PROTOCOL, "usage: transfer <key> <value>")
		}
		req.Key = tokens[1]
		req.Value = joinTokens(tokens[2:])
	case VerbLockWrite:
		if len(tokens) != 3 {
			return nil, kverror.New(kverror.KV_PROTOCOL, "usage: lockWrite <host:port> <lower>-<upper>")
		}
		req.Peer = tokens[1]
		req.Range = tokens[2]
	default:
		if len(tokens) != 1 {
			return nil, kverror.Newf(kverror.KV_PROTOCOL, "%s takes no arguments", verb)
		}
	}
	return req, nil
}

func (r *Request) String() string {
	switch r.Verb {
	case VerbGet:
		return string(r.Verb) + " " + r.Key
	case VerbPut, VerbTransfer:
		if r.Value == "" {
			return string(r.Verb) + " " + r.Key
		}
		return string(r.Verb) + " " + r.Key + " " + r.Value
	case VerbLockWrite:
		return string(r.Verb) + " " + r.Peer + " " + r.Range
	default:
		return string(r.Verb)
	}
}

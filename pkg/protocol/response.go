package protocol

import (
	"strings"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

type Response struct {
	Status StatusType
	Key    string
	Value  string
	// Metadata is the ring blob attached to SERVER_NOT_RESPONSIBLE.
	Metadata string
	// Verb and Detail carry control acknowledgements and FAILED reasons.
	Verb   Verb
	Detail string
}

func KeyValue(status StatusType, key, value string) *Response {
	return &Response{Status: status, Key: key, Value: value}
}

func NotResponsible(metadata string) *Response {
	return &Response{Status: ServerNotResponsible, Metadata: metadata}
}

func Failure(reason string) *Response {
	return &Response{Status: Failed, Detail: reason}
}

func ControlAck(verb Verb, detail string) *Response {
	return &Response{Status: ControlOK, Verb: verb, Detail: detail}
}

func ControlFailure(verb Verb, reason string) *Response {
	return &Response{Status: ControlError, Verb: verb, Detail: reason}
}

// String renders the frame without the trailing newline.
func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(string(r.Status))

	switch {
	case keyValueStatuses[r.Status]:
		sb.WriteString(" < ")
		sb.WriteString(r.Key)
		sb.WriteString(" , ")
		if r.Value != "" {
			sb.WriteString(r.Value)
			sb.WriteString(" ")
		}
		sb.WriteString(">")
	case r.Status == ServerNotResponsible:
		if r.Metadata != "" {
			sb.WriteString(" ")
			sb.WriteString(r.Metadata)
		}
	case r.Status == ControlOK || r.Status == ControlError:
		sb.WriteString(" ")
		sb.WriteString(string(r.Verb))
		if r.Detail != "" {
			sb.WriteString(" ")
			sb.WriteString(oneLine(r.Detail))
		}
	case r.Status == Failed:
		if r.Detail != "" {
			sb.WriteString(" ")
			sb.WriteString(oneLine(r.Detail))
		}
	}
	return sb.String()
}

func ParseResponse(line string) (*Response, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, kverror.New(kverror.KV_PROTOCOL, "empty response")
	}
	r := &Response{Status: StatusType(tokens[0])}

	switch {
	case keyValueStatuses[r.Status]:
		if len(tokens) < 5 || tokens[1] != "<" || tokens[3] != "," || tokens[len(tokens)-1] != ">" {
			return nil, kverror.Newf(kverror.KV_PROTOCOL, "malformed %s response", r.Status)
		}
		r.Key = tokens[2]
		r.Value = joinTokens(tokens[4 : len(tokens)-1])
	case r.Status == ServerNotResponsible:
		r.Metadata = joinTokens(tokens[1:])
	case r.Status == ServerStopped || r.Status == ServerWriteLock:
	case r.Status == ControlOK || r.Status == ControlError:
		if len(tokens) < 2 {
			return nil, kverror.Newf(kverror.KV_PROTOCOL, "malformed %s response", r.Status)
		}
		r.Verb = Verb(tokens[1])
		r.Detail = joinTokens(tokens[2:])
	case r.Status == Failed:
		r.Detail = joinTokens(tokens[1:])
	default:
		return nil, kverror.Newf(kverror.KV_PROTOCOL, "unknown status %q", tokens[0])
	}
	return r, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRequest(t *testing.T) {
	for _, tt := range []struct {
		line string
		want *Request
	}{
		{"get k", &Request{Verb: VerbGet, Key: "k"}},
		{"GET k\r", &Request{Verb: VerbGet, Key: "k"}},
		{"put k v", &Request{Verb: VerbPut, Key: "k", Value: "v"}},
		{"put k  hello   world ", &Request{Verb: VerbPut, Key: "k", Value: "hello world"}},
		{"put k", &Request{Verb: VerbPut, Key: "k"}},
		{"put k null", &Request{Verb: VerbPut, Key: "k", Value: "null"}},
		{"transfer k v w", &Request{Verb: VerbTransfer, Key: "k", Value: "v w"}},
		{"lockWrite 127.0.0.1:5001 aa-bb", &Request{Verb: VerbLockWrite, Peer: "127.0.0.1:5001", Range: "aa-bb"}},
		{"unlockWrite", &Request{Verb: VerbUnlockWrite}},
		{"update_metadata", &Request{Verb: VerbUpdateMetadata}},
		{"start", &Request{Verb: VerbStart}},
		{"stop", &Request{Verb: VerbStop}},
		{"shutdown", &Request{Verb: VerbShutdown}},
		{"stats", &Request{Verb: VerbStats}},
	} {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseRequest(tt.line)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"frobnicate k",
		"get",
		"get a b",
		"put",
		"transfer k",
		"lockWrite 127.0.0.1:1",
		"start now",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseRequest(line)
			assert.Error(t, err)
		})
	}
}

func TestRequestString(t *testing.T) {
	assert := assert.New(t)

	for _, line := range []string{"get k", "put k v w", "put k", "transfer k v", "lockWrite h:1 aa-bb", "update_metadata"} {
		req, err := ParseRequest(line)
		assert.NoError(err)
		assert.Equal(line, req.String())
	}
}

func TestResponseString(t *testing.T) {
	for _, tt := range []struct {
		resp *Response
		want string
	}{
		{KeyValue(GetSuccess, "k", "v w"), "GET_SUCCESS < k , v w >"},
		{KeyValue(GetError, "k", ""), "GET_ERROR < k , >"},
		{KeyValue(PutUpdate, "k", "v"), "PUT_UPDATE < k , v >"},
		{&Response{Status: ServerStopped}, "SERVER_STOPPED"},
		{&Response{Status: ServerWriteLock}, "SERVER_WRITE_LOCK"},
		{NotResponsible("h:1 aa-bb"), "SERVER_NOT_RESPONSIBLE h:1 aa-bb"},
		{Failure("unknown command\nx"), "FAILED unknown command x"},
		{ControlAck(VerbLockWrite, "moved 3 keys"), "CONTROL_OK lockWrite moved 3 keys"},
		{ControlAck(VerbStart, ""), "CONTROL_OK start"},
		{ControlFailure(VerbUpdateMetadata, "etcd down"), "CONTROL_ERROR update_metadata etcd down"},
	} {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.String())
		})
	}
}

func TestResponseParse(t *testing.T) {
	for _, resp := range []*Response{
		KeyValue(GetSuccess, "k", "v w"),
		KeyValue(GetError, "k", ""),
		KeyValue(DeleteSuccess, "k", "null"),
		KeyValue(TransferUpdate, "k", "a > b"),
		{Status: ServerStopped},
		NotResponsible("h:1 aa-bb h:2 bb-aa"),
		Failure("bad"),
		ControlAck(VerbStats, "get_p50=0.1"),
		ControlFailure(VerbShutdown, "already shut down"),
	} {
		t.Run(resp.String(), func(t *testing.T) {
			got, err := ParseResponse(resp.String())
			assert.NoError(t, err)
			assert.Equal(t, resp, got)
		})
	}
}

func TestResponseParseErrors(t *testing.T) {
	for _, line := range []string{"", "GET_SUCCESS k v", "GET_SUCCESS < k v >", "CONTROL_OK", "WHATEVER"} {
		_, err := ParseResponse(line)
		assert.Error(t, err, line)
	}
}

func TestLimits(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(ValidateKey(strings.Repeat("k", MaxKeyLength)))
	assert.Error(ValidateKey(strings.Repeat("k", MaxKeyLength+1)))
	assert.Error(ValidateKey(""))

	assert.NoError(ValidateValue(strings.Repeat("v", MaxValueLength)))
	assert.Error(ValidateValue(strings.Repeat("v", MaxValueLength+1)))

	assert.True(IsDeleteValue(""))
	assert.True(IsDeleteValue("null"))
	assert.False(IsDeleteValue("nil"))

	assert.True(VerbLockWrite.IsControl())
	assert.False(VerbGet.IsControl())
}

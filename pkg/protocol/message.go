package protocol

import (
	"strings"
	"unicode/utf8"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

const (
	MaxKeyLength   = 20
	MaxValueLength = 120 * 1024
	// MaxFrameSize bounds one newline terminated frame on any connection.
	MaxFrameSize = 1024 * 1024

	// DeleteValue as a put value removes the key.
	DeleteValue = "null"
)

type Verb string

const (
	VerbGet            = Verb("get")
	VerbPut            = Verb("put")
	VerbTransfer       = Verb("transfer")
	VerbStart          = Verb("start")
	VerbStop           = Verb("stop")
	VerbShutdown       = Verb("shutdown")
	VerbLockWrite      = Verb("lockWrite")
	VerbUnlockWrite    = Verb("unlockWrite")
	VerbUpdateMetadata = Verb("update_metadata")
	VerbStats          = Verb("stats")
)

var verbs = map[string]Verb{
	"get":             VerbGet,
	"put":             VerbPut,
	"transfer":        VerbTransfer,
	"start":           VerbStart,
	"stop":            VerbStop,
	"shutdown":        VerbShutdown,
	"lockwrite":       VerbLockWrite,
	"unlockwrite":     VerbUnlockWrite,
	"update_metadata": VerbUpdateMetadata,
	"stats":           VerbStats,
}

// IsControl reports whether the verb belongs to the coordinator/peer plane.
func (v Verb) IsControl() bool {
	return v != VerbGet && v != VerbPut
}

type StatusType string

const (
	GetSuccess           = StatusType("GET_SUCCESS")
	GetError             = StatusType("GET_ERROR")
	PutSuccess           = StatusType("PUT_SUCCESS")
	PutUpdate            = StatusType("PUT_UPDATE")
	PutError             = StatusType("PUT_ERROR")
	DeleteSuccess        = StatusType("DELETE_SUCCESS")
	DeleteError          = StatusType("DELETE_ERROR")
	TransferSuccess      = StatusType("TRANSFER_SUCCESS")
	TransferUpdate       = StatusType("TRANSFER_UPDATE")
	ServerStopped        = StatusType("SERVER_STOPPED")
	ServerWriteLock      = StatusType("SERVER_WRITE_LOCK")
	ServerNotResponsible = StatusType("SERVER_NOT_RESPONSIBLE")
	Failed               = StatusType("FAILED")
	ControlOK            = StatusType("CONTROL_OK")
	ControlError         = StatusType("CONTROL_ERROR")
)

// keyValueStatuses are rendered as "STATUS < key , value >".
var keyValueStatuses = map[StatusType]bool{
	GetSuccess:      true,
	GetError:        true,
	PutSuccess:      true,
	PutUpdate:       true,
	PutError:        true,
	DeleteSuccess:   true,
	DeleteError:     true,
	TransferSuccess: true,
	TransferUpdate:  true,
}

func ValidateKey(key string) error {
	if key == "" {
		return kverror.New(kverror.KV_INVALID_ARGUMENT, "empty key")
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return kverror.Newf(kverror.KV_INVALID_ARGUMENT, "key exceeds %d characters", MaxKeyLength)
	}
	return nil
}

func ValidateValue(value string) error {
	if len(value) > MaxValueLength {
		return kverror.Newf(kverror.KV_INVALID_ARGUMENT, "value exceeds %d bytes", MaxValueLength)
	}
	return nil
}

// IsDeleteValue reports whether a put carrying value removes the key.
func IsDeleteValue(value string) bool {
	return value == "" || value == DeleteValue
}

// joinTokens rebuilds a multi-token value. Runs of whitespace collapse to a
// single space, which is how values travel on the wire.
func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

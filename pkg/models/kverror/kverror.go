package kverror

import (
	"errors"
	"fmt"
)

const (
	KV_UNEXPECTED          = "KVU"
	KV_PROTOCOL            = "KVP"
	KV_NOT_RESPONSIBLE     = "KVR"
	KV_METADATA_CORRUPTION = "KVM"
	KV_INVALID_ARGUMENT    = "KVA"
	KV_CACHE_INVARIANT     = "KVC"
	KV_NODE_UNAVAILABLE    = "KVN"
	KV_MIGRATION_FAILED    = "KVT"
	KV_NO_IDLE_NODES       = "KVI"
	KV_CONNECTION_ERROR    = "KVO"
	KV_NOT_IMPLEMENTED     = "KVX"
	KV_COORDINATOR_IN_USE  = "KVL"
	KV_ROLLBACK_INCOMPLETE = "KVB"
)

var existingErrorCodeMap = map[string]string{
	KV_PROTOCOL:            "Protocol error",
	KV_NOT_RESPONSIBLE:     "Server not responsible",
	KV_METADATA_CORRUPTION: "Metadata corruption",
	KV_INVALID_ARGUMENT:    "Invalid argument",
	KV_CACHE_INVARIANT:     "Cache invariant violated",
	KV_NODE_UNAVAILABLE:    "Node unavailable",
	KV_MIGRATION_FAILED:    "Migration failed",
	KV_NO_IDLE_NODES:       "No idle nodes",
	KV_CONNECTION_ERROR:    "Connection error",
	KV_NOT_IMPLEMENTED:     "Not implemented",
	KV_COORDINATOR_IN_USE:  "Coordinator lock held",
	KV_ROLLBACK_INCOMPLETE: "Rollback incomplete",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &KVError{}

type KVError struct {
	Err error

	ErrorCode string
}

func New(errorCode string, errorMsg string) *KVError {
	return &KVError{
		Err:       errors.New(errorMsg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *KVError {
	return &KVError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

func (er *KVError) Error() string {
	return fmt.Sprintf("Code: %s. Name: %s. Description: %s.",
		er.ErrorCode, GetMessageByCode(er.ErrorCode), er.Err)
}

func (er *KVError) Unwrap() error {
	return er.Err
}

// HasCode reports whether err or anything it wraps is a KVError with code.
func HasCode(err error, code string) bool {
	var kvErr *KVError
	if errors.As(err, &kvErr) {
		return kvErr.ErrorCode == code
	}
	return false
}

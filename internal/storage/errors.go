package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// StoreErrorKind classifies why an artifact upload failed.
type StoreErrorKind string

const (
	StoreTransport  StoreErrorKind = "transport"
	StorePermission StoreErrorKind = "permission"
	StoreQuota      StoreErrorKind = "quota"
)

type StoreError struct {
	Kind  StoreErrorKind
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("store %s failed: %s", e.Key, e.Kind)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func classifyUploadError(key string, err error) *StoreError {
	kind := StoreTransport

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case code == "AccessDenied" || code == "InvalidAccessKeyId" || code == "SignatureDoesNotMatch":
			kind = StorePermission
		case code == "QuotaExceeded" || strings.Contains(code, "Quota"):
			kind = StoreQuota
		}
	}

	return &StoreError{
		Kind:  kind,
		Key:   key,
		Cause: err,
	}
}

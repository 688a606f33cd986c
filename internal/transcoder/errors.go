package transcoder

import "fmt"

// TranscodeErrorKind classifies why re-encoding a source image failed.
type TranscodeErrorKind string

const (
	TranscodeUnsupportedFormat TranscodeErrorKind = "unsupported-format"
	TranscodeDecode            TranscodeErrorKind = "decode-error"
)

type TranscodeError struct {
	Kind   TranscodeErrorKind
	Format string
	Cause  error
}

func (e *TranscodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("transcode failed: %s", e.Kind)
	if e.Format != "" {
		msg = fmt.Sprintf("%s: format=%s", msg, e.Format)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TranscodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

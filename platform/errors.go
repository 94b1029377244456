package platform

import (
	"errors"
	"fmt"

	"reelsync/internal/retry"
)

// Kind classifies an upload failure.
type Kind int

const (
	// KindConfiguration means credentials or settings are missing.
	KindConfiguration Kind = iota + 1
	// KindPrecondition means the environment cannot satisfy a platform
	// requirement, such as a public URL for Instagram.
	KindPrecondition
	// KindTransient failures may succeed on retry.
	KindTransient
	// KindPermanent failures will not succeed on retry.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindPrecondition:
		return "precondition"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	}
	return "unknown"
}

// Sentinel errors.
var (
	ErrNotConfigured     = errors.New("platform is not configured")
	ErrPublicURLRequired = errors.New("a publicly reachable video URL is required")
	ErrProcessingFailed  = errors.New("platform failed to process the video")
	ErrProcessingTimeout = errors.New("timed out waiting for the platform to process the video")
	ErrQuotaExceeded     = errors.New("upload quota exceeded")
	ErrUnauthorized      = errors.New("credentials were rejected")
)

// Error is returned by every Uploader.
type Error struct {
	Target Target
	Kind   Kind
	// Op is the step that failed, e.g. "create-container" or "upload-chunk".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Target, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the retry policy should try again.
func (e *Error) Transient() bool { return e.Kind == KindTransient }

// Errorf builds an *Error of the given kind.
func Errorf(target Target, kind Kind, op string, err error) *Error {
	return &Error{Target: target, Kind: kind, Op: op, Err: err}
}

// Classify wraps err for target, deriving the kind from the error's own
// Transient classification. An existing *Error is returned unchanged.
func Classify(target Target, op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	kind := KindPermanent
	if retry.IsTransient(err) {
		kind = KindTransient
	}
	return &Error{Target: target, Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}

// NotConfigured returns the configuration error for target.
func NotConfigured(target Target, detail string) *Error {
	err := ErrNotConfigured
	if detail != "" {
		err = fmt.Errorf("%w: %s", ErrNotConfigured, detail)
	}
	return &Error{Target: target, Kind: KindConfiguration, Err: err}
}

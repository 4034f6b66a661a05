package common

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindStorage
	KindDatabase
	KindAuth
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindStorage:
		return "StorageError"
	case KindDatabase:
		return "DatabaseError"
	case KindAuth:
		return "AuthError"
	case KindValidation:
		return "ValidationError"
	default:
		return "Unknown"
	}
}

// ErrConflict is returned as the cause of a StorageError when an object
// with the same key already exists.
var ErrConflict = errors.New("object already exists")

// Error tags a failure with the layer it came from so that handlers can pick
// the right response without inspecting backend-specific errors.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is what gets shown to the user.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func NotFound(op string, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func StorageError(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

func DatabaseError(op string, err error) error {
	return &Error{Kind: KindDatabase, Op: op, Err: err}
}

func AuthError(op string, msg string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Msg: msg, Err: err}
}

func ValidationError(op string, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// UserMessage returns a message suitable for a flash notification.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		if m := e.Message(); m != "" {
			return m
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}

// ErrBlobNotFound is returned by blob stores when the key does not exist.
var ErrBlobNotFound = errors.New("blob not found")

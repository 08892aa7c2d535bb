package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable machine-readable category attached to API errors.
// Kinds map to HTTP status codes at the server boundary; the detail string is
// for humans and may change between releases.
type ErrorKind string

const (
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindIngestion  ErrorKind = "ingestion"
	ErrorKindUpstream   ErrorKind = "upstream"
	ErrorKindStorage    ErrorKind = "storage"
	ErrorKindNotFound   ErrorKind = "not_found"
)

var (
	ErrSiteNotFound         = errors.New("site not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTurnNotFound         = errors.New("chat turn not found")
	ErrActivityNotFound     = errors.New("ingestion activity not found")
	ErrGapNotFound          = errors.New("knowledge gap not found")
)

// Error carries a kind alongside the human-readable detail. Internal causes
// are wrapped and never serialized to clients.
type Error struct {
	Kind   ErrorKind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func WrapError(kind ErrorKind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

func AuthError(detail string) *Error {
	return NewError(ErrorKindAuth, detail)
}

func ValidationError(detail string) *Error {
	return NewError(ErrorKindValidation, detail)
}

func IngestionError(detail string, cause error) *Error {
	return WrapError(ErrorKindIngestion, detail, cause)
}

func UpstreamError(detail string, cause error) *Error {
	return WrapError(ErrorKindUpstream, detail, cause)
}

func StorageError(detail string, cause error) *Error {
	return WrapError(ErrorKindStorage, detail, cause)
}

func NotFoundError(detail string) *Error {
	return NewError(ErrorKindNotFound, detail)
}

// KindOf extracts the error kind from err or any error it wraps. Store-level
// not-found sentinels are reported as ErrorKindNotFound so callers do not have
// to special-case them.
func KindOf(err error) (ErrorKind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}

	for _, sentinel := range []error{
		ErrSiteNotFound,
		ErrDocumentNotFound,
		ErrConversationNotFound,
		ErrTurnNotFound,
		ErrActivityNotFound,
		ErrGapNotFound,
	} {
		if errors.Is(err, sentinel) {
			return ErrorKindNotFound, true
		}
	}

	return "", false
}

package engine

import (
	"errors"
	"strings"

	"shootboard/internal/domain"
)

// Code classifies a Failure.
type Code string

const (
	CodeWriteFailure           Code = "WRITE_FAILURE"
	CodeAutosavePersistFailure Code = "AUTOSAVE_PERSIST_FAILURE"
	CodeReferentialConflict    Code = "REFERENTIAL_CONFLICT"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInvalidInput           Code = "INVALID_INPUT"
	// CodeRefreshFailure: the write succeeded but the follow-up list did not.
	CodeRefreshFailure Code = "REFRESH_FAILURE"
	CodeLoadFailure    Code = "LOAD_FAILURE"
)

// Op is the mutation that failed.
type Op string

const (
	OpInsert  Op = "insert"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpList    Op = "list"
	OpPersist Op = "persist"
)

// Sentinels for errors.Is; matching is by Code.
var (
	ErrWriteFailure           = &Failure{Code: CodeWriteFailure}
	ErrAutosavePersistFailure = &Failure{Code: CodeAutosavePersistFailure}
	ErrReferentialConflict    = &Failure{Code: CodeReferentialConflict}
	ErrNotFound               = &Failure{Code: CodeNotFound}
	ErrInvalidInput           = &Failure{Code: CodeInvalidInput}
	ErrRefreshFailure         = &Failure{Code: CodeRefreshFailure}
	ErrLoadFailure            = &Failure{Code: CodeLoadFailure}
)

// Failure is the user-visible outcome of a rejected or failed operation.
// Message is what the presentation layer shows; Cause keeps the gateway or
// validation error for logs.
type Failure struct {
	Code     Code
	Kind     domain.Kind
	Op       Op
	Message  string
	Blocking []domain.Project
	Cause    error
}

func (f *Failure) Error() string {
	var b strings.Builder
	if f.Message != "" {
		b.WriteString(f.Message)
	} else {
		b.WriteString(string(f.Code))
	}
	if f.Cause != nil {
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Is matches another Failure with the same Code.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Code == f.Code
}

// AsFailure extracts a Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if f, ok := AsFailure(err); ok && f.Message != "" {
		return f.Message
	}
	return err.Error()
}

func writeFailure(k domain.Kind, op Op, cause error) *Failure {
	return &Failure{
		Code:    CodeWriteFailure,
		Kind:    k,
		Op:      op,
		Message: k.Singular() + " " + string(op) + " failed",
		Cause:   cause,
	}
}

func invalidInput(k domain.Kind, op Op, cause error) *Failure {
	return &Failure{
		Code:    CodeInvalidInput,
		Kind:    k,
		Op:      op,
		Message: k.Singular() + " " + string(op) + " rejected: " + cause.Error(),
		Cause:   cause,
	}
}

func notFound(k domain.Kind, op Op, id string) *Failure {
	return &Failure{
		Code:    CodeNotFound,
		Kind:    k,
		Op:      op,
		Message: k.Singular() + " " + id + " not found",
	}
}

func refreshFailure(k domain.Kind, cause error) *Failure {
	return &Failure{
		Code:    CodeRefreshFailure,
		Kind:    k,
		Op:      OpList,
		Message: k.Singular() + " list refresh failed",
		Cause:   cause,
	}
}

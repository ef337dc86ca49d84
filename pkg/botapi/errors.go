package botapi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed API call independently of its wire code.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindInvalidArgument  ErrorKind = "invalid_argument"
	KindAlreadyTerminal  ErrorKind = "already_terminal"
	KindRateLimited      ErrorKind = "rate_limited"
	KindUnsupported      ErrorKind = "unsupported"
	KindConflict         ErrorKind = "conflict"
	KindMigrated         ErrorKind = "migrated"
	KindInternal         ErrorKind = "internal"
)

// Kind sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrAlreadyTerminal  = &Error{Kind: KindAlreadyTerminal}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrMigrated         = &Error{Kind: KindMigrated}
)

// Error is a failed API call as the platform reports it.
type Error struct {
	Kind        ErrorKind
	Code        int
	Description string
	// RetryAfter is in seconds; set for rate limited calls.
	RetryAfter int
	// MigrateToChatID is set when the target group was upgraded to a supergroup.
	MigrateToChatID int64
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Description == "" {
		return "botapi: " + string(e.Kind)
	}
	return fmt.Sprintf("botapi: %d %s", e.Code, e.Description)
}

// Is reports whether target is the kind sentinel matching e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Code == 0 && t.Description == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Code == e.Code && t.Description == e.Description
}

// Parameters returns the envelope parameters carried by the error, or nil.
func (e *Error) Parameters() *ResponseParameters {
	if e.RetryAfter == 0 && e.MigrateToChatID == 0 {
		return nil
	}
	return &ResponseParameters{RetryAfter: e.RetryAfter, MigrateToChatID: e.MigrateToChatID}
}

// AsError extracts an *Error from a wrapped error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewError builds an error with an explicit kind, code and description.
func NewError(kind ErrorKind, code int, description string) *Error {
	return &Error{Kind: kind, Code: code, Description: description}
}

// NotFound reports a missing chat, user, message, link, topic or transaction.
func NotFound(what string) *Error {
	return NewError(KindNotFound, 400, "Bad Request: "+what)
}

// NotEnoughRights reports a missing admin right with the platform's 400 shape.
func NotEnoughRights(what string) *Error {
	return NewError(KindPermissionDenied, 400, "Bad Request: "+what)
}

// Forbidden reports an action the bot is not allowed to perform at all.
func Forbidden(what string) *Error {
	return NewError(KindPermissionDenied, 403, "Forbidden: "+what)
}

// InvalidArgument reports a malformed or out-of-range parameter.
func InvalidArgument(what string) *Error {
	return NewError(KindInvalidArgument, 400, "Bad Request: "+what)
}

// AlreadyTerminal reports an operation on something that reached a final state.
func AlreadyTerminal(what string) *Error {
	return NewError(KindAlreadyTerminal, 400, "Bad Request: "+what)
}

// Conflict reports that the bot is no longer able to reach the chat.
func Conflict(what string) *Error {
	return NewError(KindConflict, 403, "Forbidden: "+what)
}

// RateLimited reports a throttled call; retryAfter is in seconds and at least 1.
func RateLimited(retryAfter int) *Error {
	if retryAfter < 1 {
		retryAfter = 1
	}
	e := NewError(KindRateLimited, 429, fmt.Sprintf("Too Many Requests: retry after %d", retryAfter))
	e.RetryAfter = retryAfter
	return e
}

// Unsupported reports a method the simulator does not implement.
func Unsupported() *Error {
	return NewError(KindUnsupported, 404, "Not Found: method not found")
}

// Migrated reports a call addressed to a group that became a supergroup.
func Migrated(newChatID int64) *Error {
	e := NewError(KindMigrated, 400, "Bad Request: group chat was upgraded to a supergroup chat")
	e.MigrateToChatID = newChatID
	return e
}

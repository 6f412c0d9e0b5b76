package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind represents the class of failure that can occur during a crawl
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindTransientAPI  Kind = "transient_api"
	KindDataShape     Kind = "data_shape"
	KindStorageIO     Kind = "storage_io"
	KindUnknown       Kind = "unknown"
)

// Error carries the kind of failure plus enough context to diagnose it
type Error struct {
	Kind      Kind
	Op        string
	AccountID string
	Page      int
	Status    int
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	var ctx []string
	if e.AccountID != "" {
		ctx = append(ctx, "account="+e.AccountID)
	}
	if e.Page > 0 {
		ctx = append(ctx, fmt.Sprintf("page=%d", e.Page))
	}
	if e.Status != 0 {
		ctx = append(ctx, fmt.Sprintf("status=%d", e.Status))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration wraps a missing or unusable configuration value
func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// StorageIO wraps a failure to read or write a table file
func StorageIO(op string, err error) *Error {
	return &Error{Kind: KindStorageIO, Op: op, Err: err}
}

// TransientAPI describes a request that completed without the upstream
// doing what was asked (non-200 status or ok != 1)
func TransientAPI(op, accountID string, page, status int, err error) *Error {
	return &Error{Kind: KindTransientAPI, Op: op, AccountID: accountID, Page: page, Status: status, Err: err}
}

// DataShape wraps an expected field that was absent from a payload
func DataShape(op, accountID string, err error) *Error {
	return &Error{Kind: KindDataShape, Op: op, AccountID: accountID, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err must abort the run. Configuration and storage
// failures are fatal; API and data shape failures are recovered locally.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindConfiguration, KindStorageIO:
		return true
	default:
		return false
	}
}

// StatusText describes a HTTP status code for log lines
func StatusText(statusCode int) string {
	if statusCode == 0 {
		return "no response"
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return "unknown status"
}

// LikelyExpiredSession reports whether a status code usually means the
// cookies supplied for the run are no longer accepted
func LikelyExpiredSession(statusCode int) bool {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}

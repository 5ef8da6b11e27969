// Package asseterr defines the stable error taxonomy the asset store surfaces to
// callers. Every failure that crosses a component boundary is an *Error carrying one
// of the Code values below and a single-line, leakage-free message: secret material,
// AAD, and key aliases must never be interpolated into Msg.
package asseterr

import "fmt"

// Code is the stable, ABI-visible error kind. Values must never be renumbered once
// shipped, since the dispatch layer serializes Code as the wire status.
type Code uint32

const (
	Success Code = iota
	InvalidArgument
	ParamVerificationFailed
	NotFound
	Duplicated
	AccessDenied
	StatusMismatch
	LimitExceeded
	Unsupported
	CryptoError
	DatabaseError
	FileOperationError
	DataCorrupted
	IpcError
	BmsError
	AccessTokenError
	AccountError
	ServiceUnavailable
	PermissionDenied
	NotSystemApplication
	GetSystemTimeError
)

var codeNames = map[Code]string{
	Success:                 "Success",
	InvalidArgument:         "InvalidArgument",
	ParamVerificationFailed: "ParamVerificationFailed",
	NotFound:                "NotFound",
	Duplicated:              "Duplicated",
	AccessDenied:            "AccessDenied",
	StatusMismatch:          "StatusMismatch",
	LimitExceeded:           "LimitExceeded",
	Unsupported:             "Unsupported",
	CryptoError:             "CryptoError",
	DatabaseError:           "DatabaseError",
	FileOperationError:      "FileOperationError",
	DataCorrupted:           "DataCorrupted",
	IpcError:                "IpcError",
	BmsError:                "BmsError",
	AccessTokenError:        "AccessTokenError",
	AccountError:            "AccountError",
	ServiceUnavailable:      "ServiceUnavailable",
	PermissionDenied:        "PermissionDenied",
	NotSystemApplication:    "NotSystemApplication",
	GetSystemTimeError:      "GetSystemTimeError",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is the concrete error type returned by every core package. Msg is rendered
// for callers and logs; Cause, when present, is kept for internal %+v inspection only
// and must itself already be leakage-free.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries cause for diagnostics, still exposing only Msg
// to anything that calls Error().
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the Code from err, defaulting to CryptoError-adjacent generic
// DatabaseError for unrecognized errors rather than claiming Success.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var ae *Error
	if ok := asError(err, &ae); ok {
		return ae.Code
	}
	return DatabaseError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

package consensus

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	MALFORMED_FORMAT             ErrorCode = "MALFORMED_FORMAT"
	SIGNATURE_INVALID            ErrorCode = "SIGNATURE_INVALID"
	INSUFFICIENT_BALANCE         ErrorCode = "INSUFFICIENT_BALANCE"
	SIGNATURE_INDEX_OUT_OF_ORDER ErrorCode = "SIGNATURE_INDEX_OUT_OF_ORDER"
	HASH_MISMATCH                ErrorCode = "HASH_MISMATCH"
	UNKNOWN_PLACEMENT            ErrorCode = "UNKNOWN_PLACEMENT"
	UNRECOGNIZED_MODE            ErrorCode = "UNRECOGNIZED_MODE"

	// UNRESOLVABLE_LEDGER_STATE is fatal: the ledger no longer mirrors the chain.
	UNRESOLVABLE_LEDGER_STATE ErrorCode = "UNRESOLVABLE_LEDGER_STATE"

	DUPLICATE_BLOCK ErrorCode = "DUPLICATE_BLOCK"
	CHAIN_HALTED    ErrorCode = "CHAIN_HALTED"
)

type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func cerr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func cerrf(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// NewError builds a coded error for callers outside this package.
func NewError(code ErrorCode, msg string) error {
	return cerr(code, msg)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

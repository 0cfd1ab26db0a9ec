package consensus

import (
	"strconv"
	"strings"
)

// addUint64 returns the sum of a and b or an error if the addition would overflow uint64.
func addUint64(a, b uint64) (uint64, error) {
	if b > (^uint64(0) - a) {
		return 0, cerr(MALFORMED_FORMAT, "amount overflow")
	}
	return a + b, nil
}

// subUint64 subtracts b from a and prevents underflow.
func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, cerr(INSUFFICIENT_BALANCE, "amount underflow")
	}
	return a - b, nil
}

// parseAmount accepts plain decimal digits only; signs and whitespace are rejected.
func parseAmount(s, name string) (uint64, error) {
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return 0, cerrf(MALFORMED_FORMAT, "%s: not a decimal amount", name)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, cerrf(MALFORMED_FORMAT, "%s: %v", name, err)
	}
	return v, nil
}

// parseInt64 parses an optionally negative decimal integer.
func parseInt64(s, name string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, cerrf(MALFORMED_FORMAT, "%s: %v", name, err)
	}
	return v, nil
}

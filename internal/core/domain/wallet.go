package domain

import (
	"errors"
	"strings"
)

// ErrInvalidInput marks errors caused by a malformed address, id or collection kind.
var ErrInvalidInput = errors.New("invalid input")

// NormalizeAddress lowercases an EVM address and makes sure it carries the 0x prefix.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	if a == "" {
		return ""
	}
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	return a
}

// IsAddress reports whether s looks like a 20-byte hex address.
func IsAddress(s string) bool {
	a := NormalizeAddress(s)
	if len(a) != 42 {
		return false
	}
	for _, r := range a[2:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

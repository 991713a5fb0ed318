// Package util cleans and parses raw arguments passed in by the host.
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg strips the host's quoting from one argument.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// CleanArgs applies CleanArg to every element in place and returns the slice.
func CleanArgs(args []string) []string {
	for i, v := range args {
		args[i] = CleanArg(v)
	}
	return args
}

// ParseID parses a decimal entity ID.
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// ParseIDList parses a comma separated list of IDs, optionally wrapped in
// brackets. An empty list yields an empty, non-nil slice.
func ParseIDList(s string) ([]uint64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	ids := []uint64{}
	if strings.TrimSpace(s) == "" {
		return ids, nil
	}
	for _, part := range strings.Split(s, ",") {
		id, err := ParseID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseBool accepts true/false, 1/0 and an empty string as false.
func ParseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return false, fmt.Errorf("invalid bool %q: %w", s, err)
	}
	return b, nil
}

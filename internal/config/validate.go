package config

import (
	"fmt"
	"strconv"
	"strings"
)

// validValues maps known keys to their allowed values.
// An empty slice means the value is checked by a type-specific rule below,
// or, for keys without one (id.prefix, actor), accepted as is.
var validValues = map[string][]string{
	KeyDefaultPriority:  {"0", "1", "2", "3", "4"},
	KeyDefaultIssueType: {"task", "bug", "feature", "epic", "chore", "docs", "question"},
	KeyIDPrefix:         {},
	KeyIDMinHashLength:  {},
	KeyIDMaxHashLength:  {},
	KeySyncAutoFlush:    {"true", "false"},
	KeySyncAutoImport:   {"true", "false"},
	KeyOutputColor:      {"true", "false"},
	KeyActor:            {},
}

// Validate checks all recognized keys present in s and returns an error
// describing every invalid value found, or nil if all values are valid.
// Unknown keys are ignored so configs from newer builds still load.
func Validate(s Store) error {
	all := s.All()
	var errs []string

	for key, allowed := range validValues {
		val, ok := all[key]
		if !ok {
			continue
		}

		if len(allowed) > 0 {
			if !contains(allowed, val) {
				errs = append(errs, fmt.Sprintf(
					"%s: invalid value %q (allowed: %s)",
					key, val, strings.Join(allowed, ", ")))
			}
			continue
		}

		switch key {
		case KeyIDMinHashLength, KeyIDMaxHashLength:
			n, err := strconv.Atoi(val)
			if err != nil || n < 3 || n > 16 {
				errs = append(errs, fmt.Sprintf(
					"%s: must be an integer between 3 and 16, got %q", key, val))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

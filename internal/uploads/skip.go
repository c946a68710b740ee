package uploads

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "pms-backup/internal/errors"
)

// SkipSet is the set of upload modules excluded from a file backup run.
type SkipSet map[string]struct{}

// NewSkipSet builds a set from names.
func NewSkipSet(names ...string) SkipSet {
	set := make(SkipSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Contains reports whether name is skipped.
func (s SkipSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the skipped names sorted.
func (s SkipSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unknown returns the skipped names that are not registered modules.
func (s SkipSet) Unknown() []string {
	var unknown []string
	for _, name := range s.Names() {
		if !IsKnown(name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ParseSkipModules turns raw --skip-upload-module values into a SkipSet.
//
// A value starting with "[" is decoded as a JSON list of names. Any other
// value is split on raw commas without trimming. Inside each name a backslash
// takes the next character literally, so "My\ Images" reads as "My Images"
// and "\\" as one backslash. Commas cannot be escaped. Values from repeated
// flags are merged.
func ParseSkipModules(values []string) (SkipSet, error) {
	set := make(SkipSet)

	for _, value := range values {
		if !utf8.ValidString(value) {
			return nil, apperrors.NewParseError("skip list is not valid UTF-8", nil).
				WithContext("value", value)
		}

		var names []string
		if strings.HasPrefix(value, "[") {
			if err := json.Unmarshal([]byte(value), &names); err != nil {
				return nil, apperrors.NewParseError("skip list is not a valid JSON list of names", err).
					WithContext("value", value)
			}
		} else {
			for _, raw := range strings.Split(value, ",") {
				name, err := unescapeName(raw)
				if err != nil {
					return nil, apperrors.NewParseError(err.Error(), nil).WithContext("value", value)
				}
				names = append(names, name)
			}
		}

		for _, name := range names {
			if name == "" {
				continue
			}
			if strings.IndexFunc(name, unicode.IsControl) >= 0 {
				return nil, apperrors.NewParseError(
					fmt.Sprintf("module name %q contains a control character", name), nil).
					WithContext("value", value)
			}
			set[name] = struct{}{}
		}
	}

	return set, nil
}

func unescapeName(raw string) (string, error) {
	if !strings.Contains(raw, `\`) {
		return raw, nil
	}

	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(raw) {
			return "", fmt.Errorf("module name %q ends with a dangling escape", raw)
		}
		i++
		b.WriteByte(raw[i])
	}
	return b.String(), nil
}

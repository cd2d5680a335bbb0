package main

import (
	"errors"
	"strings"
)

// setCodes collects repeated -set flags.
type setCodes []string

func (s *setCodes) String() string {
	return strings.Join(*s, ",")
}

func (s *setCodes) Set(value string) error {
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return errors.New("empty set code")
	}

	*s = append(*s, value)

	return nil
}

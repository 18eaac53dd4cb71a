package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSourceUnavailable means every source an analyzer depends on failed.
	ErrSourceUnavailable = errors.New("all sources unavailable")
	// ErrConfiguration marks an invalid weight table or threshold.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrCancelled is returned when the caller's context ends before a fan-out completes.
	ErrCancelled = errors.New("cancellation requested")
)

// UnavailableError carries the per-source causes behind ErrSourceUnavailable.
type UnavailableError struct {
	Domain Domain
	Causes map[string]error
}

func (e *UnavailableError) Error() string {
	names := make([]string, 0, len(e.Causes))
	for name := range e.Causes {
		names = append(names, name)
	}
	sort.Strings(names)

	causes := make([]string, 0, len(names))
	for _, name := range names {
		causes = append(causes, name+": "+e.Causes[name].Error())
	}
	return fmt.Sprintf("%s: %s (%s)", e.Domain, ErrSourceUnavailable, strings.Join(causes, "; "))
}

func (e *UnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

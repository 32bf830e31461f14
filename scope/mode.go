package scope

import (
	"fmt"
	"strings"
)

// CacheMode selects which cache a scope's repository calls go through.
// Modes are ordered: a nested scope may keep or raise its parent's mode,
// never lower it.
type CacheMode int

const (
	// Unspecified inherits the parent's mode, or Default for a root scope.
	Unspecified CacheMode = iota
	// Default reads and writes the process wide isolated caches.
	Default
	// Scoped reads and writes a region owned by the scope.
	Scoped
	// None bypasses caching.
	None
)

func (m CacheMode) String() string {
	switch m {
	case Unspecified:
		return "unspecified"
	case Default:
		return "default"
	case Scoped:
		return "scoped"
	case None:
		return "none"
	}
	return fmt.Sprintf("CacheMode(%d)", int(m))
}

// ParseCacheMode accepts the names returned by String, case insensitive.
// An empty string is Unspecified.
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified":
		return Unspecified, nil
	case "default":
		return Default, nil
	case "scoped":
		return Scoped, nil
	case "none":
		return None, nil
	}
	return Unspecified, fmt.Errorf("scope: unknown cache mode %q", s)
}

package utils

import (
	"fmt"
	"path"
	"strings"
)

// JoinPath joins path parts using forward slashes regardless of host OS.
// It strips leading/trailing slashes from each component, then prefixes the result with "/".
// Pattern:
//   - Root path = "/"
//   - Child of root = "/{child}"
//   - Children of that = "/{child}/{grandchild}" etc.
func JoinPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}

	if len(cleaned) == 0 {
		return "/"
	}

	return "/" + strings.Join(cleaned, "/")
}

// invalidNameChars are rejected in item names
const invalidNameChars = `"*:<>?/\|`

// MaxNameLength is the longest accepted item name
const MaxNameLength = 255

// ValidateName checks an item name for characters the emulated service rejects
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("name cannot be empty")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	case len(name) > MaxNameLength:
		return fmt.Errorf("name exceeds %d characters", MaxNameLength)
	case strings.ContainsAny(name, invalidNameChars):
		return fmt.Errorf("name %q contains invalid characters", name)
	case strings.HasSuffix(name, " ") || strings.HasSuffix(name, "."):
		return fmt.Errorf("name %q cannot end with a space or a period", name)
	}
	return nil
}

// DisambiguatedName returns "name (n).ext" for n >= 1
func DisambiguatedName(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// dotfiles like ".env" have no base to suffix
		base, ext = name, ""
	}
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// FreeName returns name if it is not taken, otherwise the first free
// disambiguated name.
func FreeName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for n := 1; ; n++ {
		candidate := DisambiguatedName(name, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

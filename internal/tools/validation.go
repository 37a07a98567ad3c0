package tools

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/mydocs/internal/errors"
)

// Parameter bounds shared by the tool schemas and the runtime validators.
const (
	maxQueryLength    = 500
	maxFilePathLength = 1000
	minSearchLimit    = 1
	maxSearchLimit    = 100
)

// fileTypeAliases maps every accepted file_type spelling to the canonical
// stored tag, which carries no leading dot.
var fileTypeAliases = map[string]string{
	"md":       "md",
	"markdown": "md",
	".md":      "md",
	"txt":      "txt",
	"text":     "txt",
	".txt":     "txt",
}

var sortByValues = []string{"relevance", "date", "name"}

var formatValues = []string{"json", "markdown", "text"}

// requireString extracts a mandatory non-empty string argument.
func requireString(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", errors.NewValidationError(name, fmt.Sprintf("%s is required", name))
	}
	s, ok := raw.(string)
	if !ok {
		return "", errors.NewValidationError(name, fmt.Sprintf("%s must be a string", name))
	}
	if strings.TrimSpace(s) == "" {
		return "", errors.NewValidationError(name, fmt.Sprintf("%s must not be empty", name))
	}
	return s, nil
}

// optionalString extracts an optional string argument, returning fallback
// when absent.
func optionalString(args map[string]any, name, fallback string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", errors.NewValidationError(name, fmt.Sprintf("%s must be a string", name))
	}
	return s, nil
}

// optionalBool extracts an optional boolean argument.
func optionalBool(args map[string]any, name string, fallback bool) (bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, errors.NewValidationError(name, fmt.Sprintf("%s must be a boolean", name))
	}
	return b, nil
}

// optionalInt extracts an optional integer argument. JSON numbers arrive as
// float64; fractional values are rejected.
func optionalInt(args map[string]any, name string, fallback int) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, errors.NewValidationError(name, fmt.Sprintf("%s must be an integer", name))
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("%s must be an integer", name))
	}
}

// checkLength enforces an inclusive character-count range.
func checkLength(name, value string, minLen, maxLen int) error {
	if len(value) < minLen {
		return errors.NewValidationError(name,
			fmt.Sprintf("%s must be at least %d characters", name, minLen))
	}
	if len(value) > maxLen {
		return errors.NewValidationError(name,
			fmt.Sprintf("%s must be at most %d characters (got %d)", name, maxLen, len(value)))
	}
	return nil
}

// checkRange enforces an inclusive integer range.
func checkRange(name string, value, minVal, maxVal int) error {
	if value < minVal || value > maxVal {
		return errors.NewValidationError(name,
			fmt.Sprintf("%s must be between %d and %d (got %d)", name, minVal, maxVal, value))
	}
	return nil
}

// checkEnum verifies value is one of allowed, attaching a nearest-match
// suggestion when it is not.
func checkEnum(name, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	verr := errors.NewValidationError(name,
		fmt.Sprintf("%s must be one of [%s] (got %q)", name, strings.Join(allowed, ", "), value))
	if suggestion := nearestMatch(value, allowed); suggestion != "" {
		verr = verr.WithSuggestion(suggestion)
	}
	return verr
}

// nearestMatch returns the closest allowed value within edit distance 2, or
// "" when nothing is close enough to suggest.
func nearestMatch(value string, allowed []string) string {
	best := ""
	bestDist := 3
	lower := strings.ToLower(value)
	for _, a := range allowed {
		dist := edlib.LevenshteinDistance(lower, a)
		if dist < bestDist {
			bestDist = dist
			best = a
		}
	}
	return best
}

// canonicalFileType resolves a file_type filter to its canonical extension.
func canonicalFileType(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	lower := strings.ToLower(value)
	if canonical, ok := fileTypeAliases[lower]; ok {
		return canonical, nil
	}
	return "", checkEnum(name, lower, []string{"md", "markdown", "txt", "text", ".md", ".txt"})
}

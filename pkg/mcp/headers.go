package mcp

import (
	"os"
	"strings"
)

// ExpandHeaderValue resolves environment-variable references in a header
// value. Supported forms: "env:KEY", "$KEY", "${KEY}". A reference that
// does not resolve yields an empty string so secrets placeholders are
// never sent literally.
func ExpandHeaderValue(value string) string {
	if strings.HasPrefix(value, "env:") {
		return os.Getenv(strings.TrimPrefix(value, "env:"))
	}
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, os.Getenv)
}

// ExpandHeaders expands every header value and drops those that resolved
// to nothing.
func ExpandHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	expanded := make(map[string]string, len(headers))
	for key, value := range headers {
		if resolved := ExpandHeaderValue(value); resolved != "" {
			expanded[key] = resolved
		}
	}
	return expanded
}

// Package renderer fills {{variable}} placeholders in notification templates
// and wraps rendered bodies in the branded HTML shell.
package renderer

import (
	"html"
	"regexp"
	"sort"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{name}} in text with bindings[name]. Unknown names
// render as the empty string so partial data never blocks delivery.
func Render(text string, bindings map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		return bindings[name]
	})
}

// ExtractVariables returns the sorted union of placeholder names referenced by
// the given texts (typically subject and body).
func ExtractVariables(texts ...string) []string {
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			seen[match[1]] = struct{}{}
		}
	}

	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}

// EscapeBindings returns a copy of bindings with HTML-escaped values, for
// substitution into an HTML body.
func EscapeBindings(bindings map[string]string) map[string]string {
	escaped := make(map[string]string, len(bindings))
	for k, v := range bindings {
		escaped[k] = html.EscapeString(v)
	}
	return escaped
}

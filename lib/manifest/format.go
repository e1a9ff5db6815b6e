// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"strings"
)

// FormatError reports a malformed or unknown template field.
type FormatError struct {
	// Offset is the byte offset of the offending brace in the template.
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("template offset %d: %s", e.Offset, e.Reason)
}

// Format replaces each {name} in template with values[name]. "{{" and
// "}}" produce literal braces. A field not in values, an empty field,
// a lone "}" or an unterminated "{" is an error.
func Format(template string, values map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	for i := 0; i < len(template); i++ {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(template[i+1:], "{}")
			if end < 0 || template[i+1+end] == '{' {
				return "", &FormatError{Offset: i, Reason: "unterminated field"}
			}
			name := template[i+1 : i+1+end]
			if name == "" {
				return "", &FormatError{Offset: i, Reason: "empty field name"}
			}
			value, ok := values[name]
			if !ok {
				return "", &FormatError{Offset: i, Reason: fmt.Sprintf("unknown field %q", name)}
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return "", &FormatError{Offset: i, Reason: "single '}' outside a field"}
		default:
			out.WriteByte(template[i])
		}
	}
	return out.String(), nil
}

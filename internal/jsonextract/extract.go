// Package jsonextract implements the tolerant JSON extraction spec.md
// §4.5 requires of every agent's model output: try a fenced ```json
// block, then a full parse, then the outermost balanced brace substring,
// and finally give up without raising. The brace-scanning approach is
// grounded on the teacher's free-text tool-call extractor, generalized
// from "object containing a tool/name key" to "any well-formed object".
package jsonextract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\n?```")

// Result is the outcome of an extraction attempt. Found is false when no
// JSON object could be located by any of the three strategies; callers
// never receive a Go error from Extract.
type Result struct {
	Found  bool
	Object map[string]any
	Raw    string // the substring that was parsed, for diagnostics/logging
}

// Extract runs the three-strategy tolerant extraction over raw model
// output. It never raises.
func Extract(output string) Result {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return Result{Found: false}
	}

	if m := fencedJSONBlock.FindStringSubmatch(trimmed); len(m) == 2 {
		candidate := strings.TrimSpace(m[1])
		if obj, ok := parseObject(candidate); ok {
			return Result{Found: true, Object: obj, Raw: candidate}
		}
	}

	if obj, ok := parseObject(trimmed); ok {
		return Result{Found: true, Object: obj, Raw: trimmed}
	}

	if candidate, ok := outermostBalancedBraces(trimmed); ok {
		if obj, ok := parseObject(candidate); ok {
			return Result{Found: true, Object: obj, Raw: candidate}
		}
	}

	return Result{Found: false}
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// outermostBalancedBraces finds the first '{' and its matching closing
// '}', respecting string literals and escapes, and returns the substring
// spanning them.
func outermostBalancedBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

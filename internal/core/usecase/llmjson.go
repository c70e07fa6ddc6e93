package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON parses free-form model output into out, trying
// progressively more forgiving extractions: direct parse, fenced code
// block, brace-balanced substring, then a trailing-comma cleanup pass.
func decodeModelJSON(raw string, out any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty model output")
	}

	candidates := []string{raw}
	if fenced, ok := extractFencedBlock(raw); ok {
		candidates = append(candidates, fenced)
	}
	if balanced, ok := extractBalancedObject(raw); ok {
		candidates = append(candidates, balanced)
	}

	var lastErr error
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
		cleaned := stripTrailingCommas(candidate)
		if cleaned != candidate {
			if err := json.Unmarshal([]byte(cleaned), out); err == nil {
				return nil
			} else {
				lastErr = err
			}
		}
	}
	return fmt.Errorf("no parseable json object in model output: %w", lastErr)
}

func extractFencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	// Language tag on the fence line, e.g. ```json
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		rest = rest[newline+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	block := strings.TrimSpace(rest[:end])
	return block, block != ""
}

// extractBalancedObject returns the first brace-balanced object in raw,
// skipping braces inside string literals.
func extractBalancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// internal/service/render.go
package service

import (
	"regexp"
	"strings"
	"unicode"
)

type tokenKind int

const (
	// {{firstName}}
	curlyToken tokenKind = iota
	// [GREETING]
	bracketToken
)

// resolver returns the substitution for a token, or false to leave it as written.
type resolver func(kind tokenKind, name string) (string, bool)

// render substitutes placeholders in a single left-to-right pass. Substituted
// text is written straight to the output and never scanned again.
func render(s string, resolve resolver) string {
	if !strings.ContainsAny(s, "{[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			end := strings.Index(s[i+2:], "}}")
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			inner := s[i+2 : i+2+end]
			if name, ok := curlyName(inner); ok {
				if v, ok := resolve(curlyToken, name); ok {
					b.WriteString(v)
					i += end + 4
					continue
				}
				b.WriteString(s[i : i+end+4])
				i += end + 4
				continue
			}
			b.WriteByte(s[i])
			i++
		case s[i] == '[':
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+1 : i+1+end]
			if bracketName.MatchString(name) {
				if v, ok := resolve(bracketToken, name); ok {
					b.WriteString(v)
					i += end + 2
					continue
				}
			}
			b.WriteByte(s[i])
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

var bracketName = regexp.MustCompile(`^[A-Z0-9_]+$`)

// curlyName trims a {{...}} body and reports whether it is a usable token name.
func curlyName(inner string) (string, bool) {
	if strings.ContainsAny(inner, "{}") {
		return "", false
	}
	name := strings.TrimSpace(inner)
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return "", false
	}
	return name, true
}

var curlyPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// ExtractVariables lists the {{token}} names in the given texts in order of
// first appearance, without duplicates.
func ExtractVariables(texts ...string) []string {
	seen := make(map[string]bool)
	vars := []string{}
	for _, text := range texts {
		for _, m := range curlyPattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			vars = append(vars, name)
		}
	}
	return vars
}

// invalidPlaceholders reports {{...}} occurrences whose body is empty or contains whitespace.
func invalidPlaceholders(texts ...string) []string {
	var bad []string
	for _, text := range texts {
		for _, m := range curlyPattern.FindAllStringSubmatch(text, -1) {
			if _, ok := curlyName(m[1]); !ok {
				bad = append(bad, m[0])
			}
		}
	}
	return bad
}

package notifier

import (
	"fmt"
	"strings"

	logx "flagcast/pkg/logx"
)

// Render substitutes {placeholder} occurrences in tmpl from vars.
//
// Syntax: {name} substitutes, "{{" and "}}" are literal braces. An unmatched
// brace or a placeholder missing from vars is an error; templates are
// operator-supplied, so callers fall back to a built-in default instead of
// surfacing render errors.
func Render(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		switch tmpl[i] {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed placeholder at offset %d", i)
			}
			name := tmpl[i+1 : i+1+end]
			if name == "" || strings.ContainsAny(name, "{ \t\n") {
				return "", fmt.Errorf("invalid placeholder %q", name)
			}
			v, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("unknown placeholder %q", name)
			}
			b.WriteString(v)
			i += end + 2
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			b.WriteByte(tmpl[i])
			i++
		}
	}
	return b.String(), nil
}

// renderOrFallback renders tmpl and falls back to the built-in fallback
// template on any error. The fallback templates only use placeholders that
// are always present in vars, so the second render cannot fail.
func (s *Service) renderOrFallback(tmpl, fallback string, vars map[string]string) string {
	text, err := Render(tmpl, vars)
	if err == nil {
		return text
	}
	s.log.Warn("template render failed; using default template", logx.Err(err))
	text, err = Render(fallback, vars)
	if err != nil {
		// Unreachable with the shipped defaults; keep the message anyway.
		s.log.Error("default template render failed", logx.Err(err))
		return ""
	}
	return text
}

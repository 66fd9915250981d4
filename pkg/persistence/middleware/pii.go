package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/netkrida/myhome-sub001/pkg/ports"
)

// Mask replaces the value of every field whose name matches a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.Backend
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of JSON fields matching the
// patterns before they reach storage (e.g. identity-card numbers typed into an owner
// step). Masked fields come back as Mask on restore; the user re-enters them.
// Values that are not JSON objects or arrays pass through unchanged.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Backend) ports.Backend {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Set(ctx context.Context, key string, value []byte) error {
	var doc any
	if err := json.Unmarshal(value, &doc); err != nil {
		return m.next.Set(ctx, key, value)
	}

	masked, err := json.Marshal(maskValue(doc, m.patterns))
	if err != nil {
		return err
	}
	return m.next.Set(ctx, key, masked)
}

func (m *piiMiddleware) Get(ctx context.Context, key string) ([]byte, error) {
	return m.next.Get(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) Keys(ctx context.Context, prefix string) ([]string, error) {
	return m.next.Keys(ctx, prefix)
}

// maskValue works on a freshly unmarshalled document, so mutating in place is safe.
func maskValue(v any, patterns []*regexp.Regexp) any {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if matchesAny(k, patterns) {
				t[k] = Mask
				continue
			}
			t[k] = maskValue(sub, patterns)
		}
		return t
	case []any:
		for i, sub := range t {
			t[i] = maskValue(sub, patterns)
		}
		return t
	default:
		return v
	}
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

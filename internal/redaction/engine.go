// Package redaction strips credential-shaped strings from text before
// it leaves the process. Every outbound prompt passes through here.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// credentialPatterns match well-known secret formats plus a generic
// bearer-token shape. Order matters only for overlapping matches; the
// more specific patterns come first.
var credentialPatterns = []string{
	`sk-ant-[a-zA-Z0-9\-]{20,}`,
	`sk-[a-zA-Z0-9]{20,}`,
	`AKIA[0-9A-Z]{16}`,
	`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`,
	`gh[posr]_[a-zA-Z0-9]{20,}`,
	`AIza[0-9A-Za-z\-_]{35}`,
	`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
	`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
	`xox[baprs]-[a-zA-Z0-9\-]{10,}`,
	`Bearer\s+[a-zA-Z0-9_\-\.]+`,
}

// Engine replaces detected secrets with stable placeholders. The same
// secret always maps to the same placeholder, so diff context stays
// readable across stages.
type Engine struct {
	patterns []*regexp.Regexp
	extra    []string
}

// NewEngine builds an engine with the default credential patterns.
// Literal values in extra (e.g. the webhook secret itself) are also
// redacted wherever they appear.
func NewEngine(extra ...string) *Engine {
	compiled := make([]*regexp.Regexp, 0, len(credentialPatterns))
	for _, p := range credentialPatterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	literals := make([]string, 0, len(extra))
	for _, v := range extra {
		if v != "" {
			literals = append(literals, v)
		}
	}
	return &Engine{patterns: compiled, extra: literals}
}

// Redact returns input with every detected secret replaced by its
// placeholder.
func (e *Engine) Redact(input string) (string, error) {
	found := make(map[string]string)
	for _, literal := range e.extra {
		if strings.Contains(input, literal) {
			found[literal] = placeholder(literal)
		}
	}
	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(input, -1) {
			if _, seen := found[match]; !seen {
				found[match] = placeholder(match)
			}
		}
	}

	result := input
	for secret, mark := range found {
		result = strings.ReplaceAll(result, secret, mark)
	}
	return result, nil
}

// IsRedacted reports whether content carries redaction placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

// placeholder derives a stable marker from the secret's hash so equal
// secrets collapse to equal placeholders.
func placeholder(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(sum[:])[:8])
}

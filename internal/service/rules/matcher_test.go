package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches_DomainRule(t *testing.T) {
	rs := []string{"example.com"}

	assert.True(t, Matches("https://example.com/chat", rs))
	assert.True(t, Matches("https://sub.example.com/x", rs))
	assert.True(t, Matches("https://EXAMPLE.com/", rs))
	assert.False(t, Matches("https://notexample.com", rs))
	assert.False(t, Matches("https://example.com.evil.net", rs))
}

func TestMatches_PatternRule(t *testing.T) {
	rs := []string{"*foo"}

	assert.True(t, Matches("https://site.net/foo/bar", rs))
	assert.True(t, Matches("https://foo.net/", rs))
	assert.False(t, Matches("https://site.net/baz", rs))
}

func TestMatches_PatternStripsLeadingStarsOnly(t *testing.T) {
	// Empty token after stripping never matches.
	assert.False(t, Matches("https://anything.net/", []string{"***"}))
	// Inner stars are literal.
	assert.True(t, Matches("https://a.net/p*q", []string{"*p*q"}))
}

func TestMatches_Empty(t *testing.T) {
	assert.False(t, Matches("", []string{"example.com"}))
	assert.False(t, Matches("https://example.com", nil))
	assert.False(t, Matches("https://example.com", []string{"", "  "}))
}

func TestMatches_NormalizesRules(t *testing.T) {
	assert.True(t, Matches("https://claude.ai/new", []string{"  Claude.AI  "}))
}

func TestDefaultRules_MatchTheUsualSuspects(t *testing.T) {
	assert.True(t, Matches("https://chatgpt.com/c/abc", DefaultRules))
	assert.True(t, Matches("https://gemini.google.com/app", DefaultRules))
	assert.False(t, Matches("https://news.ycombinator.com/", DefaultRules))
}

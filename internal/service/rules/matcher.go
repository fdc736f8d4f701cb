// internal/service/rules/matcher.go
package rules

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultRules is the starting rule set for new users.
var DefaultRules = []string{
	"chatgpt.com",
	"chat.openai.com",
	"openai.com",
	"claude.ai",
	"gemini.google.com",
	"perplexity.ai",
	"midjourney.com",
	"runwayml.com",
	"poe.com",
}

var domainLike = regexp.MustCompile(`^[a-z0-9.-]+$`)

// Normalize trims and lowercases a rule string.
func Normalize(rule string) string {
	return strings.ToLower(strings.TrimSpace(rule))
}

// Host extracts the host of a URL, or "" when the URL does not parse.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Matches reports whether rawURL is covered by any rule. A rule made of
// [a-z0-9.-] only is matched against the host (exact or subdomain);
// anything else is a pattern matched as a substring of the lowercased
// URL after stripping leading '*' characters.
func Matches(rawURL string, ruleSet []string) bool {
	if rawURL == "" || len(ruleSet) == 0 {
		return false
	}
	host := strings.ToLower(Host(rawURL))
	full := strings.ToLower(rawURL)

	for _, r := range ruleSet {
		rule := Normalize(r)
		if rule == "" {
			continue
		}
		if domainLike.MatchString(rule) {
			if host == rule || strings.HasSuffix(host, "."+rule) {
				return true
			}
			continue
		}
		token := strings.TrimLeft(rule, "*")
		if token != "" && strings.Contains(full, token) {
			return true
		}
	}
	return false
}

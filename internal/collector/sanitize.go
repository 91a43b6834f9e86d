package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Redaction patterns for personally identifying content in replies.
// URLs go first so their embedded user@host parts don't half-survive the
// email pass.
var (
	urlPattern   = regexp.MustCompile(`https?://[^\s<>"]+`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

// SanitizeContent redacts URLs, email addresses and phone numbers.
func SanitizeContent(content string) string {
	content = urlPattern.ReplaceAllString(content, "[url]")
	content = emailPattern.ReplaceAllString(content, "[email]")
	content = phonePattern.ReplaceAllString(content, "[phone]")
	return content
}

// AnonymizeAuthor maps an author name to a stable one-way token. The same
// author always yields the same token for a given salt, so thread structure
// survives anonymization. Empty authors yield an empty token.
func AnonymizeAuthor(salt, author string) string {
	if author == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ":" + author))
	return hex.EncodeToString(sum[:])[:16]
}

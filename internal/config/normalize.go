package config

import (
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{4,31}$`)

// NormalizeUsername strips surrounding whitespace and a leading "@".
// Usernames keep their case; the platform compares them case-insensitively.
func NormalizeUsername(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// ValidBotUsername reports whether name is a legal bot username:
// 5-32 characters of [A-Za-z0-9_], starting with a letter and ending in "bot".
func ValidBotUsername(name string) bool {
	if !usernameRe.MatchString(name) {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), "bot")
}

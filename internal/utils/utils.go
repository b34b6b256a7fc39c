package utils

import (
	"net/url"
	"regexp"
	"unicode/utf8"
)

var hostPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidLink(text string) bool {
	parsedURL, err := url.ParseRequestURI(text)
	if err != nil {
		return false
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	return hostPattern.MatchString(parsedURL.Host)
}

// TruncateText cuts text to at most limit runes, ending with "..." when shortened.
func TruncateText(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 3 {
		return string([]rune(text)[:limit])
	}
	return string([]rune(text)[:limit-3]) + "..."
}

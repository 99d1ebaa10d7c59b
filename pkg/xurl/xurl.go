// Package xurl provides URL helpers for xiaohongshu share text and links.
package xurl

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// linkPattern matches the http(s) URL embedded in a share blob. Share text
// mixes emoji, CJK punctuation and the link itself, so the character class
// stops at whitespace and the CJK delimiters that commonly follow the URL.
var linkPattern = regexp.MustCompile(`https?://[^\s，。！？、（）【】《》「」"'<>]+`)

// trailingPunct are ASCII leftovers the pattern can still pick up at the end
// of a link, e.g. a closing parenthesis or a sentence period.
const trailingPunct = ".,;:!?)('\"`"

// ExtractLink pulls the first http(s) URL out of free-form share text. It
// returns "" when the text contains no link.
func ExtractLink(text string) string {
	match := linkPattern.FindString(text)
	if match == "" {
		return ""
	}

	return strings.TrimRight(match, trailingPunct)
}

// IsValid checks if the given URL parses with an http(s) scheme and a host.
func IsValid(raw string) bool {
	u, err := url.Parse(raw)

	return err == nil && u.Host != "" && (u.Scheme == schemeHTTP || u.Scheme == schemeHTTPS)
}

// Normalize trims spaces, parses and returns the URL in string format.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}

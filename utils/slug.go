package utils

import (
	"net/url"
	"regexp"
	"strings"
)

// MaxSlugLength bounds slugs everywhere a caller does not supply its own.
const MaxSlugLength = 100

// ReservedRoutes are first path segments owned by the site itself. A request
// whose first segment matches one of these is never treated as a slug, even
// if a registry entry with that exact name exists.
var ReservedRoutes = []string{
	"api",
	"admin",
	"health",
	"contact",
	"kontakt",
	"portfolio",
	"generated",
	"sajtgranskning",
	"utvardera",
	"sajtmaskin",
	"engine",
	"_next",
	"favicon.ico",
}

// IsReservedRoute checks if a path segment is a reserved internal route.
// Case-insensitive comparison.
func IsReservedRoute(segment string) bool {
	lower := strings.ToLower(segment)
	for _, reserved := range ReservedRoutes {
		if lower == reserved {
			return true
		}
	}
	return false
}

var slugFormat = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateSlug checks format and length. maxLength <= 0 falls back to
// MaxSlugLength.
func ValidateSlug(slug string, maxLength int) error {
	if maxLength <= 0 {
		maxLength = MaxSlugLength
	}
	if slug == "" {
		return ErrEmptySlug
	}
	if len(slug) > maxLength {
		return ErrSlugTooLong
	}
	if !slugFormat.MatchString(slug) {
		return ErrSlugInvalidFormat
	}
	return nil
}

var (
	nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// diacriticFold maps the Swedish and common borrowed letters that show up in
// company names. Anything else non-alphanumeric collapses to a hyphen.
var diacriticFold = strings.NewReplacer(
	"å", "a",
	"ä", "a",
	"ö", "o",
	"é", "e",
	"ü", "u",
)

// Slugify derives a URL-safe slug from a display name: lowercase, fold
// diacritics, collapse non-alphanumeric runs to single hyphens, trim edge
// hyphens. Idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(input string) string {
	slug := strings.ToLower(strings.TrimSpace(input))
	slug = diacriticFold.Replace(slug)
	slug = nonAlnumRuns.ReplaceAllString(slug, "-")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ValidateTargetURL checks that a registry target is an absolute http(s)
// URL.
func ValidateTargetURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidScheme
	}
	if parsed.Host == "" {
		return ErrEmptyHost
	}
	return nil
}

// EnsureHTTPS prefixes bare hostnames with https:// so admin callers can
// paste either form.
func EnsureHTTPS(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}

package category

import (
	"regexp"
	"strings"
)

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

// Slugify derives a URL-safe identifier from a display name: lowercase,
// characters outside [a-z0-9 -] dropped, whitespace runs and hyphen runs
// collapsed to a single hyphen.
//
//	Slugify("Brake Pads! (Sport)") == "brake-pads-sport"
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	return slugHyphens.ReplaceAllString(s, "-")
}

// sluggable reports whether name yields a slug with at least one letter or
// digit.
func sluggable(name string) bool {
	return strings.Trim(Slugify(name), "-") != ""
}

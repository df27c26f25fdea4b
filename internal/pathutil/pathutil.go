package pathutil

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts all path separators to forward slashes.
// Go's os.Open/os.Stat accept forward slashes on all platforms.
func NormalizePath(p string) string {
	return filepath.ToSlash(p)
}

// invalidFilenameChars are characters that cannot appear in file or
// directory names on at least one supported platform.
const invalidFilenameChars = `/\:*?"<>|`

// SanitizeFilename strips filesystem-invalid characters from a name and
// collapses the resulting whitespace. The result is safe to use as a single
// path segment.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	return strings.TrimSpace(cleaned)
}

// SubtitleLanguage extracts a trailing two- or three-letter language code
// from a subtitle filename stem ("Movie.en" -> "en"). Returns "" when the
// stem carries no recognizable code.
func SubtitleLanguage(stem string) string {
	idx := strings.LastIndex(stem, ".")
	if idx < 0 || idx == len(stem)-1 {
		return ""
	}
	code := strings.ToLower(stem[idx+1:])
	if len(code) != 2 && len(code) != 3 {
		return ""
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return code
}

// Ext returns the lower-cased extension of a path, including the dot.
func Ext(p string) string {
	return strings.ToLower(filepath.Ext(p))
}

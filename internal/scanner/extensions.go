package scanner

import (
	"path/filepath"
	"strings"

	"github.com/windrose/windrose/internal/database"
)

// Extension whitelists per library type.
var (
	videoExtensions = map[string]bool{
		".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
		".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	}
	audioExtensions = map[string]bool{
		".mp3": true, ".flac": true, ".m4a": true, ".ogg": true,
		".opus": true, ".wav": true, ".aac": true, ".wma": true,
	}
	bookExtensions = map[string]bool{
		".epub": true, ".mobi": true, ".azw3": true, ".pdf": true,
		".cbz": true, ".cbr": true,
	}
)

// IsMediaFile reports whether a filename matches the whitelist for a library
// type.
func IsMediaFile(name string, libraryType database.LibraryType) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch libraryType {
	case database.LibraryMovies, database.LibraryTV:
		return videoExtensions[ext]
	case database.LibraryMusic:
		return audioExtensions[ext]
	case database.LibraryBooks:
		return bookExtensions[ext]
	default:
		return false
	}
}

// IsSampleFile reports whether a filename marks itself as a sample.
func IsSampleFile(name string) bool {
	return strings.Contains(strings.ToLower(name), "sample")
}

package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/windrose/windrose/internal/pathutil"
)

// TemplateValues are the substitution inputs for one naming operation.
type TemplateValues struct {
	Title        string
	Year         int
	Season       int
	Episode      int
	EpisodeEnd   int
	EpisodeTitle string
	Resolution   string
	Source       string
	Codec        string
	AirDate      time.Time
}

// tokenPattern matches {Token} and {Token:format} placeholders.
var tokenPattern = regexp.MustCompile(`\{([^}:]+)(?::([^}]+))?\}`)

// RenderTemplate substitutes placeholders with sanitized values. Unknown
// placeholders stay literal. The result is a relative path fragment; each
// segment is safe for the filesystem.
func RenderTemplate(template string, values TemplateValues) string {
	rendered := tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := tokenPattern.FindStringSubmatch(match)
		token, format := sub[1], sub[2]
		value, known := resolveToken(token, format, values)
		if !known {
			return match
		}
		return pathutil.SanitizeFilename(value)
	})

	// Drop empty parens left by a missing year, collapse leftover runs
	rendered = regexp.MustCompile(`\s*\(\s*\)`).ReplaceAllString(rendered, "")
	parts := strings.Split(rendered, "/")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return strings.Join(parts, "/")
}

func resolveToken(token, format string, values TemplateValues) (string, bool) {
	switch strings.ToLower(token) {
	case "title":
		return values.Title, true
	case "year":
		if values.Year > 0 {
			return strconv.Itoa(values.Year), true
		}
		return "", true
	case "season":
		return formatNumber(values.Season, format), true
	case "episode":
		if values.EpisodeEnd > values.Episode {
			return formatNumber(values.Episode, format) + "-E" + formatNumber(values.EpisodeEnd, format), true
		}
		return formatNumber(values.Episode, format), true
	case "episodetitle":
		return values.EpisodeTitle, true
	case "resolution":
		return values.Resolution, true
	case "source":
		return values.Source, true
	case "codec":
		return values.Codec, true
	case "air-date":
		if values.AirDate.IsZero() {
			return "", true
		}
		return values.AirDate.Format("2006-01-02"), true
	default:
		return "", false
	}
}

// formatNumber applies the :00 zero-padding notation.
func formatNumber(n int, format string) string {
	if format != "" && format[0] == '0' {
		return fmt.Sprintf("%0*d", len(format), n)
	}
	return strconv.Itoa(n)
}

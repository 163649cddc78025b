// Package layout implements the on-disk output contract: pure
// path-construction functions plus filename sanitization and intelligent
// title truncation.
package layout

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/capcat/capcat/internal/utils/text"
)

// DefaultMaxFilenameLength caps sanitized directory-name segments.
const DefaultMaxFilenameLength = 200

const dateLayout = "02-01-2006"

var (
	githubPrefixRe   = regexp.MustCompile(`^GitHub\s*-\s*[^:]+:\s*`)
	parenURLRe       = regexp.MustCompile(`\s*\([^)]*https?://[^)]*\)`)
	standaloneURLRe  = regexp.MustCompile(`\s*https?://\S+`)
	trailingOrRe     = regexp.MustCompile(`\s+or\s+\S+(?:\s+\([^)]*\))?\s*(?:Ready|Available|\..*)?$`)
	trailingReadyRe  = regexp.MustCompile(`\.\s*Ready.*$`)
	trailingAvailRe  = regexp.MustCompile(`\.\s*Available.*$`)
	sentenceSplitRe  = regexp.MustCompile(`[.!?]\s+`)
	invalidCharsRe   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F!@#$%^&()+=\[\]{}~` + "`" + `]`)
	separators       = []string{" - ", " | ", " – ", " — ", ": "}
)

// TruncateTitleIntelligently shortens title to at most maxLength
// characters while preserving its most meaningful segment: it strips
// "GitHub - org/repo:" prefixes, parenthesized and standalone URLs,
// picks the longest meaningful part around a separator, trims trailing
// "or X Ready/Available" phrases, and finally truncates at a sentence or
// word boundary.
func TruncateTitleIntelligently(title string, maxLength int) string {
	if title == "" || text.CountRunes(title) <= maxLength {
		return title
	}

	title = githubPrefixRe.ReplaceAllString(title, "")
	title = parenURLRe.ReplaceAllString(title, "")
	title = standaloneURLRe.ReplaceAllString(title, "")

	var parts []string
	for _, sep := range separators {
		if strings.Contains(title, sep) {
			parts = strings.Split(title, sep)
			break
		}
	}

	if len(parts) > 1 {
		var meaningful []string
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if len(trimmed) > 15 {
				meaningful = append(meaningful, trimmed)
			}
		}
		if len(meaningful) > 0 {
			title = longest(meaningful)
		} else {
			longestPart := parts[0]
			for _, part := range parts[1:] {
				if len(part) > len(longestPart) {
					longestPart = part
				}
			}
			title = strings.TrimSpace(longestPart)
		}
	}

	title = trailingOrRe.ReplaceAllString(title, "")
	title = trailingReadyRe.ReplaceAllString(title, "")
	title = trailingAvailRe.ReplaceAllString(title, "")

	if text.CountRunes(title) > maxLength {
		sentences := sentenceSplitRe.Split(title, -1)
		if len(sentences) > 1 && text.CountRunes(sentences[0]) <= maxLength {
			title = sentences[0]
		} else {
			title = truncateAtWordBoundary(title, maxLength)
		}
	}

	title = strings.Trim(title, " .-")
	if title == "" {
		title = "Article"
	}
	return title
}

func longest(parts []string) string {
	best := parts[0]
	for _, p := range parts[1:] {
		if len(p) > len(best) {
			best = p
		}
	}
	return best
}

func truncateAtWordBoundary(title string, maxLength int) string {
	words := strings.Fields(title)
	var truncated []string
	current := 0
	for _, word := range words {
		wordLen := text.CountRunes(word)
		if len(truncated) > 0 {
			wordLen++ // account for the joining space
		}
		if current+wordLen > maxLength {
			break
		}
		truncated = append(truncated, word)
		current += wordLen
	}
	if len(truncated) > 0 {
		return strings.Join(truncated, " ")
	}
	if runes := []rune(title); len(runes) > maxLength {
		return strings.TrimRight(string(runes[:maxLength]), " ")
	}
	return title
}

// SanitizeFilename produces a filesystem-safe directory/file name
// segment from title: it intelligently truncates long titles, strips
// characters invalid on common filesystems, trims leading/trailing dots
// and spaces, and falls back to "untitled" if nothing meaningful
// remains. maxLength <= 0 selects DefaultMaxFilenameLength.
func SanitizeFilename(title string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxFilenameLength
	}

	if text.CountRunes(title) > maxLength {
		title = TruncateTitleIntelligently(title, maxLength)
	}

	safe := invalidCharsRe.ReplaceAllString(title, "")
	safe = strings.Trim(safe, ". ")

	if runes := []rune(safe); len(runes) > maxLength {
		safe = strings.TrimRight(string(runes[:maxLength]), ". ")
	}

	if safe == "" {
		safe = "untitled"
	}
	return safe
}

// SanitizeDisplayName converts a source's display name into a path
// segment, replacing spaces with underscores ("Al Jazeera" ->
// "Al_Jazeera").
func SanitizeDisplayName(displayName string) string {
	return strings.ReplaceAll(strings.TrimSpace(displayName), " ", "_")
}

// BatchRoot returns the per-run root directory for batch output:
// <root>/News/News_<DD-MM-YYYY>.
func BatchRoot(root string, date time.Time) string {
	return fmt.Sprintf("%s/News/News_%s", strings.TrimRight(root, "/"), date.Format(dateLayout))
}

// SourceDir returns the per-source directory nested under a batch root:
// <batchRoot>/<DisplayName>_<DD-MM-YYYY>.
func SourceDir(batchRoot, displayName string, date time.Time) string {
	return fmt.Sprintf("%s/%s_%s", strings.TrimRight(batchRoot, "/"), SanitizeDisplayName(displayName), date.Format(dateLayout))
}

// ArticleDir returns the per-article directory nested under a source
// directory, numbered for stable ordering: <sourceDir>/<NN>_<Title>.
func ArticleDir(sourceDir string, index int, title string, maxLength int) string {
	return fmt.Sprintf("%s/%02d_%s", strings.TrimRight(sourceDir, "/"), index, SanitizeFilename(title, maxLength))
}

// SingleArticleRoot returns the output directory for a single-article
// (interactive) run: <root>/Capcats/cc_<DD-MM-YYYY>-<Title>.
func SingleArticleRoot(root string, date time.Time, title string, maxLength int) string {
	return fmt.Sprintf("%s/Capcats/cc_%s-%s", strings.TrimRight(root, "/"), date.Format(dateLayout), SanitizeFilename(title, maxLength))
}

package artifact

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// digestTagLen is how much of the content digest is kept in a key.
const digestTagLen = 12

// ArchiveKey builds the archive key for a product instance:
// <product>/<yyyy>/<ddd>/<product>_<yyyymmddThhmmss>[_<area>][_<tag>]<ext>.
// tag is the tail of the content digest, so different bytes for the same
// instance never share a key while identical bytes always do.
func ArchiveKey(product string, dateTime time.Time, area, digest, ext string) string {
	product = sanitizeSegment(product)
	if product == "" {
		product = "unknown"
	}
	dt := dateTime.UTC()
	name := product + "_" + dt.Format("20060102T150405")
	if area = sanitizeSegment(area); area != "" {
		name += "_" + area
	}
	if tag := digestTag(digest); tag != "" {
		name += "_" + tag
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(product, dt.Format("2006"), fmt.Sprintf("%03d", dt.YearDay()), name+ext)
}

func digestTag(digest string) string {
	digest = sanitizeSegment(digest)
	if len(digest) > digestTagLen {
		return digest[len(digest)-digestTagLen:]
	}
	return digest
}

// Ext returns the extension of a local file path, ignoring temp-path
// suffixes that are not real extensions.
func Ext(localPath string) string {
	ext := filepath.Ext(localPath)
	if len(ext) > 8 || strings.ContainsAny(ext, " _") {
		return ""
	}
	return ext
}

func sanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

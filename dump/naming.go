package dump

import (
	"regexp"
	"strings"
	"time"
)

// IDTimeLayout is the layout of the leading UTC timestamp of every version id.
const IDTimeLayout = "2006-01-02_15-04-05"

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9\-_,]+`)

func sanitizeIDComponent(s string) string {
	return unsafeIDChars.ReplaceAllString(s, "_")
}

// versionID builds "<utc time>/<host>/<tags>/<random id>", leaving out empty components.
func versionID(h *Host, when time.Time, tags []string) string {
	components := []string{
		when.UTC().Format(IDTimeLayout),
		h.hostname(),
		strings.Join(tags, ","),
		h.newID(),
	}
	parts := make([]string, 0, len(components))
	for _, c := range components {
		if c = sanitizeIDComponent(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "/")
}

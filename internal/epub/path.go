package epub

import (
	"net/url"
	"strings"
)

// ResolveHref resolves a chapter-relative reference string against the
// chapter's full archive path and returns the absolute archive path.
// It returns ok=false when the reference is empty or points outside the
// archive (absolute network URL).
//
// Fragment identifiers are stripped, "." and empty segments are ignored,
// and ".." pops one directory without ever going above the archive root.
// The result is percent-decoded to match raw zip entry names.
func ResolveHref(chapterPath, ref string) (string, bool) {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return "", false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return "", false
	}

	stack := strings.Split(chapterPath, "/")
	stack = stack[:len(stack)-1] // drop the chapter filename

	for _, seg := range strings.Split(ref, "/") {
		switch seg {
		case "", ".":
			// no-op
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	joined := strings.Join(stack, "/")
	if decoded, err := url.PathUnescape(joined); err == nil {
		joined = decoded
	}
	return joined, true
}

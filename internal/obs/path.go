package obs

import "strings"

// CanonicalPath collapses per-resource path segments so proposal ids do not
// explode metric label cardinality.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /editorial/proposals/<uuid>[/review|/seo|/publish]
	if len(parts) >= 4 && parts[1] == "editorial" && parts[2] == "proposals" && parts[3] != "" {
		switch len(parts) {
		case 4:
			return "/editorial/proposals/:id"
		case 5:
			return "/editorial/proposals/:id/" + parts[4]
		}
	}
	return path
}

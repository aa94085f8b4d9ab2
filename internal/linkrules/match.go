package linkrules

import (
	"path"
	"strings"
)

// domainMatches implements the pattern grammar:
//
//	example.com    exact, with www. equivalent to the bare domain
//	*.example.com  the suffix itself and any subdomain of it
//	example.*      any immediate child (one extra label)
func domainMatches(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	host = strings.ToLower(host)
	if pattern == "" || host == "" {
		return false
	}

	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		rest, ok := strings.CutPrefix(host, prefix+".")
		return ok && rest != "" && !strings.Contains(rest, ".")
	}
	return host == pattern ||
		host == "www."+pattern ||
		"www."+host == pattern
}

// pathMatches applies the optional glob; an empty pattern matches any path.
func pathMatches(pattern, p string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}

// isException reports whether the path hits any exception glob.
func isException(p string, exceptions []string) bool {
	for _, exc := range exceptions {
		if pathMatches(exc, p) {
			return true
		}
	}
	return false
}

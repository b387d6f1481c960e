package gateway

import (
	"net/http"
	"sort"
	"strings"
)

// Router decides which paths are forwarded. With no prefixes every path is
// forwarded; otherwise the longest matching prefix wins.
type Router struct {
	prefixes []string
}

func NewRouter(prefixes []string) *Router {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) > len(cleaned[j])
	})

	return &Router{prefixes: cleaned}
}

// Universal reports whether every path is forwarded.
func (r *Router) Universal() bool {
	return len(r.prefixes) == 0
}

// Match returns the matching prefix. The universal router matches every
// request with an empty prefix.
func (r *Router) Match(req *http.Request) (string, bool) {
	if req == nil || req.URL == nil {
		return "", false
	}
	if r.Universal() {
		return "", true
	}

	path := req.URL.Path
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix, true
		}
	}
	return "", false
}

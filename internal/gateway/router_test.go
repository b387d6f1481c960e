package gateway

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterMatchLongestPrefix(t *testing.T) {
	router := NewRouter([]string{"/v1", "/v1/chat/completions"})

	prefix, ok := router.Match(&http.Request{URL: &url.URL{Path: "/v1/chat/completions"}})
	assert.True(t, ok)
	assert.Equal(t, "/v1/chat/completions", prefix)
}

func TestRouterUniversal(t *testing.T) {
	router := NewRouter(nil)
	assert.True(t, router.Universal())

	_, ok := router.Match(&http.Request{URL: &url.URL{Path: "/anything/at/all"}})
	assert.True(t, ok, "universal router should match every path")
}

func TestRouterRejectsUnlistedPath(t *testing.T) {
	router := NewRouter([]string{"/v1/chat/completions", " "})

	_, ok := router.Match(&http.Request{URL: &url.URL{Path: "/v1/embeddings"}})
	assert.False(t, ok)
	assert.False(t, router.Universal(), "router with prefixes is not universal")
}

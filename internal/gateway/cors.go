package gateway

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/maskproxy/maskproxy/internal/config"
)

var corsMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// WithCORS adds CORS headers in front of next. Pre-flight requests still
// reach next, which answers them.
func WithCORS(cfg config.CORSConfig, next http.Handler) http.Handler {
	if !cfg.Enabled {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		AllowedMethods:     corsMethods,
		AllowedHeaders:     cfg.AllowedHeaders,
		MaxAge:             cfg.MaxAge,
		OptionsPassthrough: true,
	})(next)
}

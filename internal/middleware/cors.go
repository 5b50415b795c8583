// Package middleware provides reusable HTTP middleware for the trip planner API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// preflightMaxAge lets browsers reuse a preflight while an editor drags
// activities around, which issues a PATCH per move.
const preflightMaxAge = 600

// NewCORSHandler allows the planner UI at allowedOrigins (full origins, no
// trailing slash) to call the API. ETag is exposed for pool polling with
// If-None-Match.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         preflightMaxAge,
	})
	return c.Handler
}

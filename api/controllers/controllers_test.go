package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRouterWithItemRoute mounts a single handler on a chi router so URL
// parameters resolve the way they do in production.
func chiRouterWithItemRoute(method, pattern string, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Method(method, pattern, handler)
	return r
}

package http

import "net/http"

// NotFoundHandler answers every unmatched route with a JSON 404 naming the
// path, so misrouted clients see which endpoint they asked for.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no such endpoint: "+r.URL.Path)
	})
}

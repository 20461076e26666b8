package handler

import "net/http"

// AllowAllOrigins stamps the permissive origin header on every
// response, not only when the request carries an Origin header.
// Preflight negotiation still happens in the CORS middleware wrapped
// inside this one.
func AllowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(rw, req)
	})
}

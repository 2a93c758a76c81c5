// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
//
// Handlers use the Write* helpers so every error body has the same
// {"error": "..."} shape, and the Parse*OrError helpers to collapse the
// decode-validate-respond boilerplate:
//
//	func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
//	    var req preferencesRequest
//	    if !httputil.ParseJSONOrError(w, r, &req) {
//	        return
//	    }
//	    if !httputil.RequireNonEmpty(w, req.Perspective, "perspective") {
//	        return
//	    }
//	    // ...
//	    httputil.WriteSuccess(w, resp)
//	}
//
// The middleware here is deliberately small: request IDs, panic recovery,
// request logging, and body-size limits. Metrics middleware lives in
// pkg/observability next to the registry it feeds.
package httputil

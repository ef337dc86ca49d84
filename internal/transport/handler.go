package transport

import (
	"net/http"
	"strconv"
)

// ServeHTTP exposes the transport as an http.Handler, so a bot can also point its
// API base URL at an httptest server. The request host is not checked.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, body := t.serve(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
